package server

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

type messagesResponse struct {
	Items  []chat.Message `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	opts, err := parseListOptions(r.URL.Query())
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	messages, total, err := s.chat.ListMessages(r.Context(), chat.ListMessagesCommand{
		SessionID: sessionID,
		UserID:    identity.UserID,
		Options:   opts,
	})
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	opts = opts.Normalize()
	writeJSON(w, http.StatusOK, messagesResponse{
		Items:  nonNil(messages),
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// PostMessage answers 201 with the stored message, or 204 when the event was
// empty and ignored.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	var evt chat.InboundEvent
	if err = decode(r, &evt); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	msg, err := s.chat.PostMessage(r.Context(), chat.PostMessageCommand{
		SessionID: sessionID,
		Author:    identity,
		Event:     evt,
	})
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// parseListOptions reads limit, offset, role (repeatable or comma separated),
// since (RFC 3339) and order_desc.
func parseListOptions(q url.Values) (chat.ListOptions, error) {
	var opts chat.ListOptions
	var err error
	if raw := q.Get("limit"); raw != "" {
		if opts.Limit, err = strconv.Atoi(raw); err != nil || opts.Limit < 0 {
			return opts, fmt.Errorf("limit %q: %w", raw, errors.ErrInvalidPayload)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if opts.Offset, err = strconv.Atoi(raw); err != nil || opts.Offset < 0 {
			return opts, fmt.Errorf("offset %q: %w", raw, errors.ErrInvalidPayload)
		}
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return opts, fmt.Errorf("since %q: %w", raw, errors.ErrInvalidPayload)
		}
		opts.Since = lo.ToPtr(since.UTC())
	}
	if raw := q.Get("order_desc"); raw != "" {
		if opts.OrderDesc, err = strconv.ParseBool(raw); err != nil {
			return opts, fmt.Errorf("order_desc %q: %w", raw, errors.ErrInvalidPayload)
		}
	}
	for _, value := range q["role"] {
		parts := lo.Map(strings.Split(value, ","), func(part string, _ int) string {
			return strings.TrimSpace(part)
		})
		for _, raw := range lo.Compact(parts) {
			role := chat.Role(raw)
			if !role.Valid() {
				return opts, fmt.Errorf("role %q: %w", raw, errors.ErrInvalidRole)
			}
			opts.Roles = append(opts.Roles, role)
		}
	}
	if len(opts.Roles) > 0 {
		opts.Roles = lo.Uniq(opts.Roles)
	}
	return opts, nil
}
