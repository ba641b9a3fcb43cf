package markup

// rule is anything the trie can index by its marker.
type rule interface {
	Marker() string
}

type trieNode struct {
	children map[byte]*trieNode
	rule     rule // set when a marker ends here
}

type match struct {
	Rule rule
	Len  int
}

// trie is a byte prefix tree used for longest-marker matching.
type trie struct {
	root *trieNode
}

func newTrie() *trie {
	return &trie{root: &trieNode{children: make(map[byte]*trieNode)}}
}

func (t *trie) insert(r rule) {
	node := t.root
	marker := r.Marker()
	for i := 0; i < len(marker); i++ {
		c := marker[i]
		if node.children[c] == nil {
			node.children[c] = &trieNode{children: make(map[byte]*trieNode)}
		}
		node = node.children[c]
	}
	node.rule = r
}

// Match returns every rule whose marker starts at pos, shortest first.
func (t *trie) Match(text string, pos int) []match {
	node := t.root
	var matches []match

	for i := pos; i < len(text); i++ {
		next := node.children[text[i]]
		if next == nil {
			break
		}
		node = next
		if node.rule != nil {
			matches = append(matches, match{Rule: node.rule, Len: i - pos + 1})
		}
	}
	return matches
}
