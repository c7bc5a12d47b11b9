package secret

// A KeyIterator walks a snapshot of store keys. It is consumed once:
//
//	it, err := store.Keys()
//	if err != nil {
//		return err
//	}
//	for it.Next() {
//		fmt.Println(it.Key())
//	}
type KeyIterator struct {
	keys []string
	cur  string
}

// Next advances to the next key and reports whether there was one.
func (it *KeyIterator) Next() bool {
	if len(it.keys) == 0 {
		it.cur = ""
		return false
	}
	it.cur, it.keys = it.keys[0], it.keys[1:]
	return true
}

// Key returns the key reached by the last call to Next.
func (it *KeyIterator) Key() string { return it.cur }

// Remaining returns the number of keys not yet visited.
func (it *KeyIterator) Remaining() int { return len(it.keys) }

// Collect consumes the remaining keys and returns them.
func (it *KeyIterator) Collect() []string {
	keys := make([]string, 0, len(it.keys))
	for it.Next() {
		keys = append(keys, it.Key())
	}
	return keys
}
