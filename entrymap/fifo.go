package entrymap

import "container/list"

// fifoCollection orders keys by insertion: Move is a no-op, so eviction
// order ignores access entirely.
type fifoCollection struct {
	ll    *list.List
	byKey map[string]*list.Element
}

func init() {
	FIFO.Register(func(cap int) Collection {
		return &fifoCollection{ll: list.New(), byKey: make(map[string]*list.Element)}
	})
}

func (c *fifoCollection) Move(key string) {}

func (c *fifoCollection) Add(key string) {
	e := c.ll.PushBack(key)
	c.byKey[key] = e
}

func (c *fifoCollection) Remove(key string) {
	e, ok := c.byKey[key]
	if !ok {
		return
	}
	c.ll.Remove(e)
	delete(c.byKey, key)
}

func (c *fifoCollection) Discard() (string, bool) {
	e := c.ll.Front()
	if e == nil {
		return "", false
	}
	c.ll.Remove(e)
	key := e.Value.(string)
	delete(c.byKey, key)
	return key, true
}

func (c *fifoCollection) Len() int { return c.ll.Len() }
