package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tgaller/triviador-server/internal/protocol"
	"github.com/tgaller/triviador-server/internal/session"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

type scriptDice struct {
	vals []int
	idx  int
}

func (d *scriptDice) Intn(n int) int {
	if d.idx >= len(d.vals) {
		return 0
	}
	v := d.vals[d.idx] % n
	d.idx++
	return v
}

func TestRecvSelectScripted(t *testing.T) {
	b := New(2, "Dobó István", &scriptDice{vals: []int{1}}, 0, 0)
	avail := triviador.NewBitmap(5, 9, 14)

	cmd, err := b.Recv(context.Background(), session.Prompt{
		Kind:      triviador.HintSelect,
		Available: avail,
		Deadline:  time.Now().Add(time.Second),
	})
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if cmd.Kind != protocol.KindSelect || cmd.Area != 9 {
		t.Fatalf("cmd = %+v, want SELECT area 9", cmd)
	}
}

func TestRecvSelectEmptyPool(t *testing.T) {
	b := New(2, "x", triviador.NewDice(1), 0, 0)
	_, err := b.Recv(context.Background(), session.Prompt{Kind: triviador.HintSelect})
	if !errors.Is(err, session.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestRecvAnswerRange(t *testing.T) {
	b := New(3, "x", triviador.NewDice(7), 0, 0)
	for i := 0; i < 50; i++ {
		cmd, err := b.Recv(context.Background(), session.Prompt{Kind: triviador.HintAnswer})
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if cmd.Kind != protocol.KindAnswer || cmd.Answer < 1 || cmd.Answer > 4 {
			t.Fatalf("cmd = %+v", cmd)
		}
	}
}

func TestRecvTipRange(t *testing.T) {
	b := New(1, "x", triviador.NewDice(3), 0, 0)
	for i := 0; i < 50; i++ {
		cmd, err := b.Recv(context.Background(), session.Prompt{Kind: triviador.HintTip, TipMax: 100})
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if cmd.Kind != protocol.KindTip || cmd.Tip < 0 || cmd.Tip > 100 {
			t.Fatalf("cmd = %+v", cmd)
		}
	}
}

func TestThinkCancel(t *testing.T) {
	b := New(1, "x", triviador.NewDice(3), time.Minute, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := b.Recv(ctx, session.Prompt{Kind: triviador.HintAnswer})
		errc <- err
	}()
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, session.ErrClosed) {
			t.Fatalf("err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not cancel with the context")
	}
}

func TestBarrierAndPushAreImmediate(t *testing.T) {
	b := New(2, "x", triviador.NewDice(1), time.Hour, time.Hour)
	if err := b.AwaitReady(context.Background()); err != nil {
		t.Fatalf("AwaitReady: %v", err)
	}
	if err := b.Push("<ROOT></ROOT>"); err != nil {
		t.Fatalf("Push: %v", err)
	}
}

func TestPickName(t *testing.T) {
	d := triviador.NewDice(5)
	taken := map[string]bool{}
	for i := 0; i < len(Names); i++ {
		n := PickName(d, taken)
		if taken[n] {
			t.Fatalf("name %q picked twice", n)
		}
		taken[n] = true
	}
	if n := PickName(d, taken); taken[n] {
		t.Fatalf("exhausted pool returned taken name %q", n)
	}
}
