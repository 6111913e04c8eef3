// Package stubserver is an in-memory chat backend for local
// development and integration tests. It speaks the same REST and SSE
// surface as the production backend and fakes assistant responses.
package stubserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/domain/chatstore"
	"jan-client/chat-core/internal/infrastructure/logger"
)

// Options tunes the fake backend. ChunkDelay throttles streaming so
// the CLI renders visibly incremental output; tests leave it zero.
type Options struct {
	ChunkDelay time.Duration
}

type Server struct {
	engine     *gin.Engine
	log        zerolog.Logger
	chunkDelay time.Duration

	mu            sync.Mutex
	conversations map[string]*chat.Conversation
	branches      map[string][]chat.MessageBranch
	messages      map[string][]chat.Message
	messageConv   map[string]string
}

func New(opts Options) *Server {
	s := &Server{
		log:           logger.GetLogger().With().Str("component", "stubserver").Logger(),
		chunkDelay:    opts.ChunkDelay,
		conversations: make(map[string]*chat.Conversation),
		branches:      make(map[string][]chat.MessageBranch),
		messages:      make(map[string][]chat.Message),
		messageConv:   make(map[string]string),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "chat-stub"})
	})

	v1 := engine.Group("/v1")
	{
		v1.GET("/conversations", s.listConversations)
		v1.POST("/conversations", s.createConversation)
		v1.GET("/conversations/:id", s.getConversation)
		v1.GET("/conversations/:id/messages", s.listMessages)
		v1.POST("/conversations/:id/branches/:branch_id/switch", s.switchBranch)
		v1.GET("/messages/:id/branches", s.listMessageBranches)
		v1.POST("/files/resolve", s.resolveFiles)
		v1.POST("/conversations/:id/messages/stream", s.streamSendMessage)
		v1.POST("/conversations/:id/messages/:message_id/edit", s.streamEditMessage)
	}

	s.engine = engine
	return s
}

// Handler returns the HTTP handler for mounting in a server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) listConversations(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := make([]chat.ConversationSummary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		count := int64(len(s.messages[conv.ActiveBranchID]))
		summaries = append(summaries, chat.ConversationSummary{
			ID:           conv.ID,
			Title:        conv.Title,
			AssistantID:  conv.AssistantID,
			ModelID:      conv.ModelID,
			MessageCount: count,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) createConversation(c *gin.Context) {
	var req chatstore.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	branch := chat.MessageBranch{ID: uuid.NewString(), CreatedAt: now}
	conv := &chat.Conversation{
		ID:             uuid.NewString(),
		Title:          chat.DeriveTitle(req.Title),
		AssistantID:    req.AssistantID,
		ModelID:        req.ModelID,
		ActiveBranchID: branch.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	branch.ConversationID = conv.ID

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.branches[conv.ID] = []chat.MessageBranch{branch}
	s.messages[branch.ID] = nil
	s.mu.Unlock()

	c.JSON(http.StatusCreated, conv)
}

func (s *Server) getConversation(c *gin.Context) {
	s.mu.Lock()
	conv, ok := s.conversations[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) listMessages(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	branchID := c.Query("branch_id")
	if branchID == "" {
		branchID = conv.ActiveBranchID
	}
	messages := s.messages[branchID]
	if messages == nil {
		messages = []chat.Message{}
	}
	c.JSON(http.StatusOK, chat.CloneMessages(messages))
}

func (s *Server) switchBranch(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	branchID := c.Param("branch_id")
	if _, ok := s.messages[branchID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "branch not found"})
		return
	}
	conv.ActiveBranchID = branchID
	conv.UpdatedAt = time.Now().UTC()
	c.Status(http.StatusNoContent)
}

func (s *Server) listMessageBranches(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	convID, ok := s.messageConv[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, s.branches[convID])
}

func (s *Server) resolveFiles(c *gin.Context) {
	var req struct {
		FileIDs []string `json:"file_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := make([]chat.File, 0, len(req.FileIDs))
	for _, id := range req.FileIDs {
		files = append(files, chat.File{ID: id, Name: id + ".txt", MimeType: "text/plain"})
	}
	c.JSON(http.StatusOK, files)
}

// buildReply fakes an assistant answer and splits it into streamable
// deltas.
func buildReply(content string) []string {
	reply := "You asked about " + chat.DeriveTitle(content) + ". This is a canned response from the stub backend, streamed one fragment at a time."
	words := strings.Fields(reply)
	chunks := make([]string, 0, len(words))
	for i, word := range words {
		if i == 0 {
			chunks = append(chunks, word)
			continue
		}
		chunks = append(chunks, " "+word)
	}
	return chunks
}
