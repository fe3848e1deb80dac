package utils

// CreateRankList creates 1-based display ranks for an already sorted list.
// Lists longer than the uint16 range saturate at the last rank.
func CreateRankList(count int) []uint16 {
	if count <= 0 {
		return []uint16{}
	}
	ranks := make([]uint16, count)
	for i := 0; i < count; i++ {
		if i >= 0xFFFE {
			ranks[i] = 0xFFFF
			continue
		}
		ranks[i] = uint16(i + 1)
	}
	return ranks
}
