package mongostore

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/capitalize-ai/community-platform/internal/docstore"
)

const (
	fieldID     = "_id"
	fieldParent = "_parent"
)

// target resolves a collection path to the Mongo collection name and the
// parent document path stored on every member document.
type target struct {
	collection string
	parent     string
}

func resolve(path string) (target, error) {
	if err := docstore.ValidateCollection(path); err != nil {
		return target{}, err
	}
	parent, group := docstore.SplitCollection(path)
	return target{collection: group, parent: parent}, nil
}

// scope is the filter selecting documents of this collection path.
func (t target) scope() bson.D {
	if t.parent == "" {
		return bson.D{}
	}
	return bson.D{{Key: fieldParent, Value: t.parent}}
}

// key is the stored _id of id. Sub-collections of one group share a Mongo
// collection, so their ids carry the parent path: "conversations/c1/m1".
func (t target) key(id string) string {
	if t.parent == "" {
		return id
	}
	return t.parent + "/" + id
}

func (t target) byID(id string) bson.D {
	return append(bson.D{{Key: fieldID, Value: t.key(id)}}, t.scope()...)
}

// toBSON builds the stored body of a document.
func (t target) toBSON(id string, data map[string]any, now time.Time) bson.M {
	body := docstore.NormalizeMap(data)
	docstore.ResolveSentinels(body, now)
	out := bson.M{}
	for k, v := range body {
		out[k] = v
	}
	out[fieldID] = t.key(id)
	if t.parent != "" {
		out[fieldParent] = t.parent
	}
	return out
}

// translateUpdates maps docstore updates onto Mongo update operators.
func translateUpdates(updates []docstore.Update) (bson.M, error) {
	set := bson.M{}
	inc := bson.M{}
	addToSet := bson.M{}
	pull := bson.M{}
	unset := bson.M{}
	currentDate := bson.M{}

	for _, u := range updates {
		if err := docstore.ValidateField(u.Path); err != nil {
			return nil, err
		}
		switch v := u.Value.(type) {
		case docstore.Sentinel:
			switch v {
			case docstore.ServerTimestamp:
				currentDate[u.Path] = true
			case docstore.DeleteField:
				unset[u.Path] = ""
			default:
				return nil, fmt.Errorf("unknown sentinel %v", v)
			}
		case docstore.Incr:
			inc[u.Path] = v.By
		case docstore.Union:
			addToSet[u.Path] = bson.M{"$each": normalizeElems(v.Elems)}
		case docstore.Remove:
			pull[u.Path] = bson.M{"$in": normalizeElems(v.Elems)}
		default:
			val := docstore.Normalize(u.Value)
			if m, ok := val.(map[string]any); ok {
				docstore.ResolveSentinels(m, time.Now().UTC())
			}
			set[u.Path] = val
		}
	}

	doc := bson.M{}
	for op, fields := range map[string]bson.M{
		"$set":         set,
		"$inc":         inc,
		"$addToSet":    addToSet,
		"$pull":        pull,
		"$unset":       unset,
		"$currentDate": currentDate,
	} {
		if len(fields) > 0 {
			doc[op] = fields
		}
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("empty update")
	}
	return doc, nil
}

func normalizeElems(elems []any) bson.A {
	out := make(bson.A, len(elems))
	for i, e := range elems {
		out[i] = docstore.Normalize(e)
	}
	return out
}

// translatePreconditions turns array-membership checks into filter clauses.
func translatePreconditions(pre []docstore.Precondition) (bson.D, error) {
	out := bson.D{}
	for _, p := range pre {
		if err := docstore.ValidateField(p.Path); err != nil {
			return nil, err
		}
		v := docstore.Normalize(p.Value)
		switch p.Op {
		case docstore.MustContain:
			out = append(out, bson.E{Key: p.Path, Value: v})
		case docstore.MustNotContain:
			out = append(out, bson.E{Key: p.Path, Value: bson.M{"$ne": v}})
		default:
			return nil, fmt.Errorf("unknown precondition op %d", p.Op)
		}
	}
	return out, nil
}

var filterOps = map[docstore.Op]string{
	docstore.OpNotEqual:     "$ne",
	docstore.OpLess:         "$lt",
	docstore.OpLessEqual:    "$lte",
	docstore.OpGreater:      "$gt",
	docstore.OpGreaterEqual: "$gte",
}

// translateQuery builds the filter and sort of a query. Clauses are joined
// with $and so repeated paths do not overwrite each other.
func translateQuery(t target, q docstore.Query) (bson.D, bson.D, error) {
	clauses := bson.A{}
	if t.parent != "" {
		clauses = append(clauses, bson.M{fieldParent: t.parent})
	}
	for _, f := range q.Filters {
		v := docstore.Normalize(f.Value)
		switch f.Op {
		case docstore.OpEqual, docstore.OpArrayContains:
			// Mongo equality on an array field matches any element
			clauses = append(clauses, bson.M{f.Path: v})
		default:
			op, ok := filterOps[f.Op]
			if !ok {
				return nil, nil, fmt.Errorf("unsupported filter operator %q", f.Op)
			}
			clauses = append(clauses, bson.M{f.Path: bson.M{op: v}})
		}
	}

	var sort bson.D
	if q.Order != nil {
		dir := 1
		if q.Order.Direction == docstore.Desc {
			dir = -1
		}
		clauses = append(clauses, bson.M{q.Order.Path: bson.M{"$exists": true}})
		sort = bson.D{{Key: q.Order.Path, Value: dir}, {Key: fieldID, Value: 1}}
	}

	filter := bson.D{}
	if len(clauses) > 0 {
		filter = bson.D{{Key: "$and", Value: clauses}}
	}
	return filter, sort, nil
}

// fromBSON converts a raw stored document into a docstore document.
func fromBSON(collection string, raw bson.M) docstore.Document {
	doc := docstore.Document{Collection: collection, Data: map[string]any{}}
	for k, v := range raw {
		switch k {
		case fieldID:
			// document ids never contain "/", so the last segment is the id
			key := fmt.Sprint(v)
			doc.ID = key[strings.LastIndex(key, "/")+1:]
		case fieldParent:
		default:
			doc.Data[k] = plain(v)
		}
	}
	return doc
}

// plain rewrites BSON-specific values into the shapes the stores share.
func plain(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case int32:
		return int64(t)
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Null:
		return nil
	}
	return v
}
