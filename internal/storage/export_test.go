package storage

// SetPartSize shrinks the multipart chunk size so tests can exercise many
// parts without large buffers.
func (c *Client) SetPartSize(n int64) { c.partSize = n }
