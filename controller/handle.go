package controller

import "github.com/google/uuid"

// imageHandle is the revocable reference behind /preview/{id}. At most one
// handle is alive at a time; releasing it drops the payload so a stale id
// can no longer be served.
type imageHandle struct {
	id   string
	mime string
	name string
	data []byte
}

func newImageHandle(data []byte, mime, name string) *imageHandle {
	return &imageHandle{id: uuid.NewString(), mime: mime, name: name, data: data}
}
