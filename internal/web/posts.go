package web

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/blockcheck/internal/blocks"
	"github.com/kuitang/blockcheck/internal/errs"
)

// Post is one open editor. The editor model is not safe for concurrent use,
// so every access goes through Do.
type Post struct {
	ID      string
	Created time.Time

	mu     sync.Mutex
	editor *blocks.Editor
}

// Do runs fn with exclusive access to the post's editor.
func (p *Post) Do(fn func(*blocks.Editor) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.editor)
}

// State returns a snapshot of the editor state.
func (p *Post) State() blocks.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.editor.State()
}

// PostStore keeps the posts of a running server in memory.
type PostStore struct {
	mu    sync.RWMutex
	posts map[string]*Post
	opts  []blocks.Option
}

// NewPostStore creates an empty store. opts are applied to every new editor.
func NewPostStore(opts ...blocks.Option) *PostStore {
	return &PostStore{
		posts: make(map[string]*Post),
		opts:  opts,
	}
}

// Create opens a new post holding only the default block.
func (s *PostStore) Create() *Post {
	p := &Post{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		editor:  blocks.NewEditor(s.opts...),
	}
	s.mu.Lock()
	s.posts[p.ID] = p
	s.mu.Unlock()
	return p
}

// Get returns the post with the given ID.
func (s *PostStore) Get(id string) (*Post, error) {
	s.mu.RLock()
	p, ok := s.posts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("post %q not found", id))
	}
	return p, nil
}

// Delete removes a post. It reports whether the post existed.
func (s *PostStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.posts[id]
	delete(s.posts, id)
	return ok
}

// Len returns the number of open posts.
func (s *PostStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// Input is one user input event: a key chord, literal text, or a click on a
// control identified by its data-action attributes. Exactly one of Key, Text
// and Action is set.
type Input struct {
	Key    string `json:"key,omitempty"`
	Text   string `json:"text,omitempty"`
	Action string `json:"action,omitempty"`
	Index  int    `json:"index"`
	Item   string `json:"item,omitempty"`
}

// Apply applies the input to e.
func (in Input) Apply(e *blocks.Editor) error {
	set := 0
	for _, s := range []string{in.Key, in.Text, in.Action} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return errs.New(errs.InvalidArgument, "exactly one of key, text and action is required")
	}

	switch {
	case in.Key != "":
		return e.HandleKey(blocks.ParseKey(in.Key))
	case in.Text != "":
		return e.InsertText(in.Text)
	default:
		return e.Dispatch(blocks.Action{
			Name:  blocks.ActionName(in.Action),
			Index: in.Index,
			Item:  blocks.MenuItem(in.Item),
		})
	}
}

// BlockState is the JSON form of a block.
type BlockState struct {
	ClientID string `json:"clientId"`
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
}

// StateResponse is the JSON body of GET /api/posts/{id}/state.
type StateResponse struct {
	PostID              string       `json:"postId"`
	Title               string       `json:"title"`
	Blocks              []BlockState `json:"blocks"`
	Selection           string       `json:"selection"`
	Typing              bool         `json:"typing"`
	MenuOpen            bool         `json:"menuOpen"`
	TitleFocused        bool         `json:"titleFocused"`
	DefaultBlockFocused bool         `json:"defaultBlockFocused"`
	Content             string       `json:"content"`
}

// NewStateResponse builds the state payload for an editor.
func NewStateResponse(postID string, e *blocks.Editor) StateResponse {
	st := e.State()
	resp := StateResponse{
		PostID:              postID,
		Title:               st.Title,
		Blocks:              make([]BlockState, len(st.Blocks)),
		Selection:           st.Selection.String(),
		Typing:              st.Typing,
		MenuOpen:            st.MenuOpen,
		TitleFocused:        st.TitleFocused,
		DefaultBlockFocused: e.IsDefaultBlockFocused(),
		Content:             e.Serialize(),
	}
	for i, b := range st.Blocks {
		resp.Blocks[i] = BlockState{ClientID: b.ClientID, Type: string(b.Type), Content: b.Content}
	}
	return resp
}
