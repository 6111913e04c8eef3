package stubserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/domain/chatstore"
)

func prepareSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Writer.WriteHeaderNow()
}

func (s *Server) writeEvent(c *gin.Context, name string, payload any) {
	if payload == nil {
		fmt.Fprintf(c.Writer, "event: %s\n\n", name)
	} else {
		data, err := json.Marshal(payload)
		if err != nil {
			s.log.Error().Err(err).Str("event", name).Msg("unable to marshal event payload")
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, data)
	}
	c.Writer.Flush()
	if s.chunkDelay > 0 {
		time.Sleep(s.chunkDelay)
	}
}

// streamSendMessage fakes the send flow: persist the user message,
// stream a canned assistant reply and derive a title on the first
// exchange.
func (s *Server) streamSendMessage(c *gin.Context) {
	var req chatstore.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	branchID := conv.ActiveBranchID
	firstExchange := len(s.messages[branchID]) == 0
	s.mu.Unlock()

	prepareSSE(c)
	s.writeEvent(c, chat.EventConnected, nil)

	now := time.Now().UTC()
	userMsg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           chat.RoleUser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	userMsg.Contents = []chat.ContentItem{{
		ID:        uuid.NewString(),
		MessageID: userMsg.ID,
		Type:      chat.ContentTypeText,
		Text:      req.Content,
	}}
	s.writeEvent(c, chat.EventNewUserMessage, gin.H{"message_id": userMsg.ID})

	assistantMsg := s.streamAssistantReply(c, conv.ID, req.Content)

	if firstExchange {
		title := chat.DeriveTitle(req.Content)
		s.mu.Lock()
		conv.Title = title
		conv.UpdatedAt = time.Now().UTC()
		s.mu.Unlock()
		s.writeEvent(c, chat.EventTitleUpdated, gin.H{"title": title})
	}

	s.mu.Lock()
	s.messages[branchID] = append(s.messages[branchID], userMsg, assistantMsg)
	s.messageConv[userMsg.ID] = conv.ID
	s.messageConv[assistantMsg.ID] = conv.ID
	s.mu.Unlock()

	s.writeEvent(c, chat.EventComplete, nil)
}

// streamEditMessage fakes the edit flow: replace the message, fork a
// branch carrying history up to the edit and regenerate the reply
// there.
func (s *Server) streamEditMessage(c *gin.Context) {
	var req chatstore.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	messageID := c.Param("message_id")
	history := s.messages[conv.ActiveBranchID]
	idx := -1
	for i := range history {
		if history[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	original := history[idx]
	originatedID := original.OriginatedFromID
	if originatedID == "" {
		originatedID = original.ID
	}
	edited := original.Clone()
	edited.ID = uuid.NewString()
	edited.OriginatedFromID = originatedID
	edited.EditCount = original.EditCount + 1
	edited.RewriteText(req.Content)

	branch := chat.MessageBranch{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		CreatedAt:      time.Now().UTC(),
	}
	forked := chat.CloneMessages(history[:idx])
	forked = append(forked, edited)
	s.branches[conv.ID] = append(s.branches[conv.ID], branch)
	s.messages[branch.ID] = forked
	s.messageConv[edited.ID] = conv.ID
	conv.ActiveBranchID = branch.ID
	conv.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	prepareSSE(c)
	s.writeEvent(c, chat.EventConnected, nil)
	s.writeEvent(c, chat.EventEditedMessage, edited)
	s.writeEvent(c, chat.EventCreatedBranch, branch)

	assistantMsg := s.streamAssistantReply(c, conv.ID, req.Content)

	s.mu.Lock()
	s.messages[branch.ID] = append(s.messages[branch.ID], assistantMsg)
	s.messageConv[assistantMsg.ID] = conv.ID
	s.mu.Unlock()

	s.writeEvent(c, chat.EventComplete, nil)
}

// streamAssistantReply emits the assistant message scaffold and its
// chunked canned reply, returning the finished message for
// persistence.
func (s *Server) streamAssistantReply(c *gin.Context, conversationID, prompt string) chat.Message {
	now := time.Now().UTC()
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           chat.RoleAssistant,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	contentID := uuid.NewString()

	s.writeEvent(c, chat.EventNewAssistantMessage, gin.H{"message_id": msg.ID})
	s.writeEvent(c, chat.EventNewMessageContent, gin.H{
		"message_content_id": contentID,
		"message_id":         msg.ID,
	})

	var text string
	for _, delta := range buildReply(prompt) {
		text += delta
		s.writeEvent(c, chat.EventMessageContentChunk, gin.H{
			"message_content_id": contentID,
			"delta":              delta,
		})
	}

	msg.Contents = []chat.ContentItem{{
		ID:        contentID,
		MessageID: msg.ID,
		Type:      chat.ContentTypeText,
		Text:      text,
	}}
	return msg
}
