// Package chat defines the persisted chat record, the store keys derived from
// its ids, and the flat field-map codec used to keep a chat in a Redis hash.
package chat

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	tjson "github.com/xyzj/toolbox/json"

	"github.com/xyzj/chatstore/history"
)

const (
	chatKeyPrefix      = "chat:"
	userIndexKeyPrefix = "user:chat:"

	// Anonymous is the owner assigned to chats saved without a user id.
	Anonymous = "anonymous"
	// SharePrefix is prepended to a chat id to build its public share path.
	SharePrefix = "/share/"
)

// Hash field names.
const (
	FieldID        = "id"
	FieldUserID    = "userId"
	FieldTitle     = "title"
	FieldPath      = "path"
	FieldCreatedAt = "createdAt"
	FieldSharePath = "sharePath"
	FieldMessages  = "messages"
)

// Chat is a single conversation as it is stored in its primary record.
//
// Only ID, UserID and SharePath carry meaning for the store. The remaining
// fields are payload and hold the stored text verbatim: CreatedAt is whatever
// timestamp the caller sent and Messages is the serialized message list. Any
// hash field the codec does not know about is kept in Extra.
//
// The JSON form is flat: Extra fields sit next to the known ones.
type Chat struct {
	ID        string
	UserID    string
	Title     string
	Path      string
	CreatedAt string
	SharePath string
	Messages  string
	Extra     map[string]string
}

// Shared reports whether the chat has been published.
func (c *Chat) Shared() bool {
	return c.SharePath != ""
}

// ChatMessages decodes Messages into ark messages. Keys the ark model does not
// know are not kept, so the result is a view and must not be written back in
// place of Messages unless that loss is intended.
func (c *Chat) ChatMessages() ([]*model.ChatCompletionMessage, error) {
	msgs := make([]*model.ChatCompletionMessage, 0)
	if c.Messages == "" {
		return msgs, nil
	}
	if err := tjson.UnmarshalFromString(c.Messages, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SetChatMessages replaces Messages with the serialized msgs.
func (c *Chat) SetChatMessages(msgs []*model.ChatCompletionMessage) error {
	if len(msgs) == 0 {
		c.Messages = ""
		return nil
	}
	s, err := tjson.MarshalToString(msgs)
	if err != nil {
		return err
	}
	c.Messages = s
	return nil
}

// Key returns the primary record key of a chat.
func Key(id string) string {
	return chatKeyPrefix + id
}

// UserIndexKey returns the key of the sorted set listing a user's chats.
func UserIndexKey(userID string) string {
	return userIndexKeyPrefix + userID
}

// SharePath returns the public path assigned to a chat when it is shared.
func SharePath(id string) string {
	return SharePrefix + id
}

// Encode flattens c into hash fields. Extra fields go first so the known
// fields always win; empty optional fields are left out.
func Encode(c *Chat) map[string]string {
	fields := make(map[string]string, len(c.Extra)+7)
	for k, v := range c.Extra {
		fields[k] = v
	}
	fields[FieldID] = c.ID
	fields[FieldUserID] = c.UserID
	for k, v := range map[string]string{
		FieldTitle:     c.Title,
		FieldPath:      c.Path,
		FieldCreatedAt: c.CreatedAt,
		FieldSharePath: c.SharePath,
		FieldMessages:  c.Messages,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

// Decode rebuilds a chat from hash fields. ok is false when fields is empty,
// which is how a missing record shows up; the returned chat is never nil.
// Values are taken as they are, nothing is parsed.
func Decode(fields map[string]string) (c *Chat, ok bool) {
	c = &Chat{}
	if len(fields) == 0 {
		return c, false
	}
	for k, v := range fields {
		switch k {
		case FieldID:
			c.ID = v
		case FieldUserID:
			c.UserID = v
		case FieldTitle:
			c.Title = v
		case FieldPath:
			c.Path = v
		case FieldCreatedAt:
			c.CreatedAt = v
		case FieldSharePath:
			c.SharePath = v
		case FieldMessages:
			c.Messages = v
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]string)
			}
			c.Extra[k] = v
		}
	}
	return c, true
}

// MarshalJSON writes the hash fields of c as one flat object with sorted keys.
// Every value is a JSON string except messages, which is emitted as is when it
// holds a JSON array or object.
func (c Chat) MarshalJSON() ([]byte, error) {
	fields := Encode(&c)
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, k := range slices.Sorted(maps.Keys(fields)) {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		v := fields[k]
		if k == FieldMessages && isContainer(v) {
			buf.WriteString(v)
			continue
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat object. String values are taken unquoted, null
// values are skipped and any other value (numbers, booleans, arrays, objects)
// is kept as its JSON text, so {"createdAt":1704067200000} stores
// "1704067200000" and a messages array stores the array text.
func (c *Chat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch {
		case string(v) == "null":
		case len(v) > 0 && v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			fields[k] = s
		default:
			fields[k] = string(v)
		}
	}
	d, _ := Decode(fields)
	*c = *d
	return nil
}

// TrimMessages keeps the last n elements of a serialized message array. Kept
// elements are copied byte for byte. ok is false, and messages is returned
// untouched, when it is not a JSON array.
func TrimMessages(messages string, n int) (trimmed string, ok bool) {
	elems := make([]json.RawMessage, 0)
	if err := json.Unmarshal([]byte(messages), &elems); err != nil {
		return messages, false
	}
	if n <= 0 || len(elems) <= n {
		return messages, true
	}
	parts := make([]string, 0, n)
	for _, e := range history.Last(n, elems) {
		parts = append(parts, string(e))
	}
	return "[" + strings.Join(parts, ",") + "]", true
}

func isContainer(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" || (s[0] != '[' && s[0] != '{') {
		return false
	}
	return json.Valid([]byte(s))
}
