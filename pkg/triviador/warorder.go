package triviador

// NewWarOrder builds the acting order for a multi-round phase: one block of
// three per round, each block an independent permutation of the seats.
func NewWarOrder(rounds int, d Dice) []int {
	order := make([]int, 0, rounds*3)
	for r := 0; r < rounds; r++ {
		block := [3]int{1, 2, 3}
		for i := len(block) - 1; i > 0; i-- {
			j := d.Intn(i + 1)
			block[i], block[j] = block[j], block[i]
		}
		order = append(order, block[:]...)
	}
	return order
}

// WarOrderBlock returns the acting seats of round r (1-based) within order.
func WarOrderBlock(order []int, r int) []int {
	lo := (r - 1) * 3
	if lo < 0 || lo+3 > len(order) {
		return nil
	}
	return order[lo : lo+3]
}

func validWarOrder(order []int) bool {
	if len(order) == 0 || len(order)%3 != 0 {
		return false
	}
	for b := 0; b < len(order); b += 3 {
		var seen [4]bool
		for _, s := range order[b : b+3] {
			if s < 1 || s > 3 || seen[s] {
				return false
			}
			seen[s] = true
		}
	}
	return true
}
