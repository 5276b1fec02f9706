// Package notifytest provee un Notifier que guarda los envíos en memoria.
package notifytest

import (
	"context"
	"sync"
)

// Message es un envío capturado.
type Message struct {
	Channel    string // "email" | "sms"
	TemplateID string
	Address    string
	Params     map[string]string
}

// Recorder implementa notify.Notifier.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	// Err, si no es nil, se devuelve en cada envío.
	Err error
}

func (r *Recorder) SendEmail(_ context.Context, templateID, address string, params map[string]string) error {
	return r.record("email", templateID, address, params)
}

func (r *Recorder) SendSMS(_ context.Context, templateID, phone string, params map[string]string) error {
	return r.record("sms", templateID, phone, params)
}

func (r *Recorder) record(channel, templateID, address string, params map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	r.sent = append(r.sent, Message{Channel: channel, TemplateID: templateID, Address: address, Params: cp})
	return nil
}

// Sent retorna una copia de los envíos.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Last retorna el último envío; ok=false si no hubo ninguno.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}
