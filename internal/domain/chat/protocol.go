package chat

import (
	"encoding/json"
	"fmt"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

// Wire message types exchanged over a session channel.
const (
	MessageTypeQuestion = "question"
	MessageTypeAnswer   = "answer"
)

// QuestionMessage is the outbound client->resolver frame.
type QuestionMessage struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

// AnswerPayload carries a resolved answer back to the session.
type AnswerPayload struct {
	Answer     string    `json:"answer"`
	Source     qa.Source `json:"source"`
	Confidence float64   `json:"confidence"`
}

// AnswerMessage is the inbound resolver->client frame.
type AnswerMessage struct {
	Type string        `json:"type"`
	Data AnswerPayload `json:"data"`
}

// Inbound is the decoded variant of a channel frame.
type Inbound interface{ isInbound() }

// InboundQuestion is a decoded question frame.
type InboundQuestion struct{ Question string }

// InboundAnswer is a decoded answer frame.
type InboundAnswer struct{ Payload AnswerPayload }

// InboundUnknown represents a frame with an unrecognized type. Receivers
// must ignore it rather than fail, so new message types stay deployable.
type InboundUnknown struct{ Type string }

func (InboundQuestion) isInbound() {}
func (InboundAnswer) isInbound()   {}
func (InboundUnknown) isInbound()  {}

// EncodeQuestion serializes a question frame.
func EncodeQuestion(text string) ([]byte, error) {
	return json.Marshal(QuestionMessage{Type: MessageTypeQuestion, Question: text})
}

// EncodeAnswer serializes an answer frame.
func EncodeAnswer(payload AnswerPayload) ([]byte, error) {
	return json.Marshal(AnswerMessage{Type: MessageTypeAnswer, Data: payload})
}

type envelope struct {
	Type     string          `json:"type"`
	Question string          `json:"question"`
	Data     json.RawMessage `json:"data"`
}

// DecodeInbound parses a raw frame into its typed variant.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch env.Type {
	case MessageTypeQuestion:
		return InboundQuestion{Question: env.Question}, nil
	case MessageTypeAnswer:
		var payload AnswerPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode answer payload: %w", err)
		}
		return InboundAnswer{Payload: payload}, nil
	default:
		return InboundUnknown{Type: env.Type}, nil
	}
}
