package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tgaller/triviador-server/internal/model"
)

const questionBufferKey = "questions:buffer"

// PushQuestions appends questions to the read-ahead buffer.
func (c *Client) PushQuestions(ctx context.Context, qs []model.Question) error {
	if len(qs) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(qs))
	for _, q := range qs {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal question: %w", err)
		}
		vals = append(vals, data)
	}
	if err := c.rdb.RPush(ctx, questionBufferKey, vals...).Err(); err != nil {
		return fmt.Errorf("push questions: %w", err)
	}
	return nil
}

// PopQuestion takes the next buffered question, or nil when the buffer is
// empty.
func (c *Client) PopQuestion(ctx context.Context) (*model.Question, error) {
	data, err := c.rdb.LPop(ctx, questionBufferKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop question: %w", err)
	}
	var q model.Question
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("unmarshal question: %w", err)
	}
	return &q, nil
}

// QuestionBacklog returns how many questions the buffer still holds.
func (c *Client) QuestionBacklog(ctx context.Context) (int64, error) {
	n, err := c.rdb.LLen(ctx, questionBufferKey).Result()
	if err != nil {
		return 0, fmt.Errorf("question backlog: %w", err)
	}
	return n, nil
}
