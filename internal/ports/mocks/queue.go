package mocks

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var (
	_ ports.Publisher   = (*Publisher)(nil)
	_ ports.JobLauncher = (*Launcher)(nil)
)

// Message is one published payload, kept in its JSON form.
type Message struct {
	Topic string
	Data  []byte
}

// Publisher records every published message.
type Publisher struct {
	mu       sync.Mutex
	Messages []Message
	// Err, when set, is returned by Publish and nothing is recorded.
	Err error
}

func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	if p.Err != nil {
		return p.Err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Message{Topic: topic, Data: b})
	return nil
}

// OnTopic returns the messages published to one topic.
func (p *Publisher) OnTopic(topic string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, m := range p.Messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Launch is one recorded job start.
type Launch struct {
	Job    string
	Params map[string]string
}

// Launcher records every job launch.
type Launcher struct {
	mu       sync.Mutex
	Launches []Launch
	Err      error
}

func (l *Launcher) Launch(ctx context.Context, job string, params map[string]string) error {
	if l.Err != nil {
		return l.Err
	}
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Launches = append(l.Launches, Launch{Job: job, Params: cp})
	return nil
}

// ParamKeys returns the sorted parameter names of a launch.
func (l Launch) ParamKeys() []string {
	keys := make([]string, 0, len(l.Params))
	for k := range l.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
