package query

// Optimistic — транзакция спекулятивной записи: снимок значения до записи
// позволяет вернуть его дословно, если сервер отклонил изменение.
type Optimistic struct {
	c        *Client
	key      Key
	previous entry
	existed  bool
}

// Begin снимает снимок текущего значения ключа.
func (c *Client) Begin(key Key) *Optimistic {
	c.mu.Lock()
	defer c.mu.Unlock()

	o := &Optimistic{c: c, key: key}
	if e, ok := c.entries[key.String()]; ok {
		o.previous = *e
		o.existed = true
	}
	return o
}

// Previous возвращает значение из снимка.
func (o *Optimistic) Previous() (any, bool) {
	return o.previous.value, o.existed
}

// Write спекулятивно записывает значение.
func (o *Optimistic) Write(v any) {
	o.c.SetData(o.key, v)
}

// Rollback восстанавливает запись из снимка вместе с её временем и признаком
// устаревания или удаляет ключ, если его не было.
func (o *Optimistic) Rollback() {
	c := o.c
	c.mu.Lock()
	defer c.mu.Unlock()

	s := o.key.String()
	c.gens[s]++
	if !o.existed {
		delete(c.entries, s)
		return
	}
	restored := o.previous
	restored.gen = c.gens[s]
	c.entries[s] = &restored
}
