package suggest

import (
	"slices"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// wordTrie maps normalized words and full texts to the indices of the terms
// that contain them. Index lists are ascending, so visiting them yields
// vocabulary order.
type wordTrie struct {
	trie *patricia.Trie
	keys int
}

func newWordTrie() *wordTrie {
	return &wordTrie{trie: patricia.NewTrie()}
}

func (t *wordTrie) add(key string, idx int) {
	if key == "" {
		return
	}
	p := patricia.Prefix(key)
	if item := t.trie.Get(p); item != nil {
		ids := item.([]int)
		if ids[len(ids)-1] != idx {
			t.trie.Set(p, append(ids, idx))
		}
		return
	}
	t.trie.Insert(p, []int{idx})
	t.keys++
}

// search returns the sorted, distinct term indices under prefix
func (t *wordTrie) search(prefix string) []int {
	if t == nil || prefix == "" {
		return nil
	}

	seen := make(map[int]struct{})
	var out []int
	err := t.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, item patricia.Item) error {
		ids, ok := item.([]int)
		if !ok {
			log.Errorf("Unknown item type: %T for key %s", item, p)
			return nil
		}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting trie subtree: %v", err)
	}

	slices.Sort(out)
	return out
}
