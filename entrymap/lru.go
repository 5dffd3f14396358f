package entrymap

import "container/list"

// lruCollection orders keys by recency: Move promotes the touched key to
// the front, so Discard always evicts the least-recently-touched key.
type lruCollection struct {
	ll    *list.List
	byKey map[string]*list.Element
}

func init() {
	LRU.Register(func(cap int) Collection {
		return &lruCollection{ll: list.New(), byKey: make(map[string]*list.Element)}
	})
}

func (c *lruCollection) Move(key string) {
	if e, ok := c.byKey[key]; ok {
		c.ll.MoveToFront(e)
	}
}

func (c *lruCollection) Add(key string) {
	e := c.ll.PushFront(key)
	c.byKey[key] = e
}

func (c *lruCollection) Remove(key string) {
	e, ok := c.byKey[key]
	if !ok {
		return
	}
	c.ll.Remove(e)
	delete(c.byKey, key)
}

func (c *lruCollection) Discard() (string, bool) {
	e := c.ll.Back()
	if e == nil {
		return "", false
	}
	c.ll.Remove(e)
	key := e.Value.(string)
	delete(c.byKey, key)
	return key, true
}

func (c *lruCollection) Len() int { return c.ll.Len() }
