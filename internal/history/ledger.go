package history

import (
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// DefaultCapacity емкость истории по умолчанию
	DefaultCapacity = 50

	// PreviewLength максимальная длина превью текста в символах
	PreviewLength = 120
)

// Entry запись об успешно обработанном запросе
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	TextPreview string    `json:"text"`
	VoiceID     string    `json:"voiceId"`
	AudioURL    string    `json:"audioUrl"`
}

// Ledger ограниченная история последних запросов, новые записи первыми
type Ledger struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	now      func() time.Time
}

// NewLedger создает историю указанной емкости
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Add добавляет запись в начало, вытесняя самую старую при заполнении
func (l *Ledger) Add(text, voiceID, audioURL string) Entry {
	entry := Entry{
		Timestamp:   l.now().UTC(),
		TextPreview: Preview(text, PreviewLength),
		VoiceID:     voiceID,
		AudioURL:    audioURL,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, Entry{})
	}
	copy(l.entries[1:], l.entries[:len(l.entries)-1])
	l.entries[0] = entry

	return entry
}

// List возвращает копию записей, новые первыми
func (l *Ledger) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len возвращает количество записей
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Capacity возвращает емкость истории
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Preview обрезает текст до max символов без разрыва UTF-8
func Preview(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}
