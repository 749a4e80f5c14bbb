// Package http exposes the chat system over REST plus a websocket event
// stream. It translates wire requests into domain commands and maps
// domain errors onto status codes.
package http

import (
	"chat-gen/auth"
	"chat-gen/domain/chat"
	"chat-gen/errors"
	"chat-gen/services"
	"chat-gen/sink"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const defaultSearchLimit = 20

type Server struct {
	log                  *slog.Logger
	chats                services.IChatService
	accounts             services.IAuthService
	tokens               *auth.TokenManager
	connectionBufferSize int
	validate             *validator.Validate
	upgrader             websocket.Upgrader
}

func NewServer(log *slog.Logger, chats services.IChatService, accounts services.IAuthService,
	tokens *auth.TokenManager, connectionBufferSize int) *Server {
	return &Server{
		log:                  log,
		chats:                chats,
		accounts:             accounts,
		tokens:               tokens,
		connectionBufferSize: connectionBufferSize,
		validate:             validator.New(),
		upgrader:             websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}
}

// Handler assembles the route table. Auth endpoints are public; every
// chat endpoint goes through the JWT middleware.
func (s *Server) Handler() http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("POST /chats", s.handleCreateChat)
	protected.HandleFunc("GET /chats/{id}/messages", s.handleGetMessages)
	protected.HandleFunc("POST /chats/{id}/message", s.handlePostMessage)
	protected.HandleFunc("POST /chats/{id}/messages/{messageId}/retry", s.handleRetry)
	protected.HandleFunc("GET /chats/{id}/subscribe", s.handleSubscribe)
	protected.HandleFunc("GET /chats/{id}/search", s.handleSearch)

	root := http.NewServeMux()
	root.HandleFunc("POST /auth/register", s.handleRegister)
	root.HandleFunc("POST /auth/login", s.handleLogin)
	root.Handle("/", auth.Middleware(s.tokens, protected))
	return root
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.accounts.Register(req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, authResponse{Token: string(token)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.accounts.Login(req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, authResponse{Token: string(token)})
}

type createChatRequest struct {
	MemberIDs   []string `json:"member_ids"`
	CharacterID string   `json:"character_id" validate:"required"`
}

type chatResponse struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	MemberIDs   []string `json:"member_ids"`
	CharacterID string   `json:"character_id"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req createChatRequest
	if !s.decode(w, r, &req) {
		return
	}

	created, err := s.chats.CreateChat(chat.Chat{
		OwnerID:     userID,
		MemberIDs:   req.MemberIDs,
		CharacterID: req.CharacterID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, chatResponse{
		ID:          string(created.ID),
		OwnerID:     created.OwnerID,
		MemberIDs:   created.MemberIDs,
		CharacterID: created.CharacterID,
	})
}

type messageResponse struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	Lang      string `json:"lang,omitempty"`
	SentAt    int64  `json:"sent_at"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

type messagesResponse struct {
	Messages []messageResponse `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

// requireMember enforces the one read-side policy: only the chat's
// audience may see its content. Writes go through the coordinator, which
// applies the same check itself.
func (s *Server) requireMember(w http.ResponseWriter, r *http.Request, chatID chat.ChatID) bool {
	userID, _ := auth.UserID(r.Context())
	loaded, err := s.chats.GetChat(chatID)
	if err != nil {
		s.writeError(w, err)
		return false
	}
	if !loaded.HasMember(userID) {
		s.writeError(w, errors.ErrForbidden)
		return false
	}
	return true
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chat.ChatID(r.PathValue("id"))
	if !s.requireMember(w, r, chatID) {
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	messages, next, err := s.chats.GetMessages(chat.GetMessageCommand{Chat: chatID, Cursor: cursor})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messagesResponse{
		Messages: lo.Map(messages, func(m chat.Message, _ int) messageResponse { return toMessageResponse(m) }),
		Cursor:   next,
	})
}

type postMessageRequest struct {
	Message   string `json:"message" validate:"required"`
	Ephemeral bool   `json:"ephemeral"`
}

type ackResponse struct {
	Success bool `json:"success"`
}

// handlePostMessage acknowledges optimistically: a 200 here means the
// generation session started, not that a reply was committed. The reply
// arrives on the subscribe stream.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	chatID := chat.ChatID(r.PathValue("id"))
	var req postMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.chats.Generate(r.Context(), chat.GenerateCommand{
		Chat:      chatID,
		UserID:    userID,
		Message:   req.Message,
		History:   s.history(chatID),
		Ephemeral: req.Ephemeral,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	chatID := chat.ChatID(r.PathValue("id"))
	messageID, err := uuid.Parse(r.PathValue("messageId"))
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}

	var req postMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	err = s.chats.Retry(r.Context(), chat.RetryCommand{
		Chat:      chatID,
		UserID:    userID,
		MessageID: messageID,
		Message:   req.Message,
		History:   s.history(chatID),
		Ephemeral: req.Ephemeral,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

// handleSubscribe upgrades to a websocket and pumps broadcast events to
// the caller until they disconnect. One registry slot per user.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if !s.requireMember(w, r, chat.ChatID(r.PathValue("id"))) {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	wsSink := sink.NewWsSink(s.connectionBufferSize)
	s.chats.Subscribe(userID, wsSink)
	defer s.chats.Unsubscribe(userID)

	// Reads are discarded; a read error is the disconnect signal.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			s.log.Debug("Client disconnected", "user_id", userID)
			return
		case <-r.Context().Done():
			return
		case evt := <-wsSink.Events:
			if err := conn.WriteJSON(sink.ToWire(evt)); err != nil {
				s.log.Error("Failed to push event to websocket",
					"user_id", userID,
					"error", err)
				return
			}
		}
	}
}

type searchResponse struct {
	Hits []searchHitResponse `json:"hits"`
}

type searchHitResponse struct {
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	chatID := chat.ChatID(r.PathValue("id"))
	if !s.requireMember(w, r, chatID) {
		return
	}
	terms := r.URL.Query().Get("q")
	if terms == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	limit := defaultSearchLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	hits, err := s.chats.Search(r.Context(), chatID, terms, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := searchResponse{Hits: []searchHitResponse{}}
	for _, h := range hits {
		resp.Hits = append(resp.Hits, searchHitResponse{
			MessageID: h.MessageID,
			SenderID:  h.SenderID,
			Content:   h.Content,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// history loads the most recent page of messages in chronological order,
// used as generation context. Best effort; an empty history is fine.
func (s *Server) history(chatID chat.ChatID) []chat.Message {
	messages, _, err := s.chats.GetMessages(chat.GetMessageCommand{Chat: chatID})
	if err != nil {
		return nil
	}
	return lo.Reverse(messages)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func toMessageResponse(m chat.Message) messageResponse {
	return messageResponse{
		ID:        m.ID.String(),
		ChatID:    string(m.ChatID),
		SenderID:  m.SenderID,
		Content:   m.Content,
		Lang:      m.Lang,
		SentAt:    m.SentAt.UnixMilli(),
		Ephemeral: m.Ephemeral,
	}
}
