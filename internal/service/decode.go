package service

import (
	"fmt"

	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/internal/model"
)

func decodeConversation(doc docstore.Document) (model.Conversation, error) {
	var c model.Conversation
	if err := docstore.Decode(doc.Data, &c); err != nil {
		return c, fmt.Errorf("conversation %s: %w", doc.ID, err)
	}
	c.ID = doc.ID
	return c, nil
}

func decodeMessage(doc docstore.Document) (model.Message, error) {
	var m model.Message
	if err := docstore.Decode(doc.Data, &m); err != nil {
		return m, fmt.Errorf("message %s: %w", doc.ID, err)
	}
	m.ID = doc.ID
	return m, nil
}

func decodePost(doc docstore.Document) (model.Post, error) {
	var p model.Post
	if err := docstore.Decode(doc.Data, &p); err != nil {
		return p, fmt.Errorf("post %s: %w", doc.ID, err)
	}
	p.ID = doc.ID
	return p, nil
}

func decodeComment(doc docstore.Document) (model.Comment, error) {
	var c model.Comment
	if err := docstore.Decode(doc.Data, &c); err != nil {
		return c, fmt.Errorf("comment %s: %w", doc.ID, err)
	}
	c.ID = doc.ID
	return c, nil
}

func decodeNotification(doc docstore.Document) (model.Notification, error) {
	var n model.Notification
	if err := docstore.Decode(doc.Data, &n); err != nil {
		return n, fmt.Errorf("notification %s: %w", doc.ID, err)
	}
	n.ID = doc.ID
	return n, nil
}

func decodeUser(doc docstore.Document) (model.User, error) {
	var u model.User
	if err := docstore.Decode(doc.Data, &u); err != nil {
		return u, fmt.Errorf("user %s: %w", doc.ID, err)
	}
	u.ID = doc.ID
	return u, nil
}

func decodeDeviceToken(doc docstore.Document) (model.DeviceToken, error) {
	var d model.DeviceToken
	if err := docstore.Decode(doc.Data, &d); err != nil {
		return d, fmt.Errorf("device token %s: %w", doc.ID, err)
	}
	d.ID = doc.ID
	return d, nil
}

func decodeAll[T any](docs []docstore.Document, decode func(docstore.Document) (T, error)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
