package ledger

import "sort"

// Before orders rows by (OccurredAt, CreatedAt, Seq) ascending.
func Before(a, b *Header) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.Before(b.OccurredAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// SortChronological returns a chronologically ordered copy of txs.
func SortChronological(txs []Transaction) []Transaction {
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Before(ordered[i].Meta(), ordered[j].Meta())
	})
	return ordered
}

// FilterByCycleName keeps the rows of one cycle. An empty name keeps everything.
func FilterByCycleName(txs []Transaction, name string) []Transaction {
	if name == "" {
		return txs
	}
	filtered := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Meta().CycleName == name {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
