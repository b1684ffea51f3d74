package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"

	"recivo/internal/payload"
	"recivo/internal/scanner"
)

// Meaning что означает найденное по правилу поле
type Meaning string

const (
	MeaningAudio  Meaning = "audio"
	MeaningJobID  Meaning = "job_id"
	MeaningStatus Meaning = "status"
	MeaningOutput Meaning = "output"
)

// Rule правило извлечения поля из ответа провайдера
type Rule struct {
	Path    string
	Meaning Meaning
	// Strict поле общего назначения: принимается только то, что распознано как аудио
	Strict bool

	expr *jmespath.JMESPath
}

// Table приоритетный список правил. Порядок в срезе - порядок проверки.
type Table struct {
	Audio  []Rule
	JobID  []Rule
	Status []Rule
	Output []Rule

	// CompletionMarkers значения статуса, означающие готовность (без учета регистра)
	CompletionMarkers []string
}

// DefaultTable возвращает скомпилированные правила для известных форм ответа провайдера
func DefaultTable() *Table {
	t := &Table{
		Audio: []Rule{
			{Path: "audioFile", Meaning: MeaningAudio},
			{Path: "audioUrl", Meaning: MeaningAudio},
			{Path: "audio_url", Meaning: MeaningAudio},
			{Path: "audio", Meaning: MeaningAudio, Strict: true},
			{Path: "url", Meaning: MeaningAudio, Strict: true},
			{Path: "data.audioFile", Meaning: MeaningAudio},
			{Path: "data.audioUrl", Meaning: MeaningAudio},
			{Path: "result.audioUrl", Meaning: MeaningAudio},
		},
		JobID: paths(MeaningJobID,
			"id",
			"jobId",
			"job_id",
			"taskId",
			"task_id",
			"requestId",
			"request_id",
			"data.id",
			"data.jobId",
		),
		Status: paths(MeaningStatus,
			"status",
			"state",
			"data.status",
		),
		Output: paths(MeaningOutput,
			"output",
			"output.audioUrl",
			"output.audio_url",
			"output.audioFile",
			"output.url",
			"output[0]",
			"output[0].url",
			"output[0].audioUrl",
		),
		CompletionMarkers: []string{
			"SUCCEEDED", "SUCCESS", "COMPLETED", "COMPLETE", "FINISHED", "DONE", "READY",
		},
	}
	return t.MustCompile()
}

func paths(meaning Meaning, exprs ...string) []Rule {
	out := make([]Rule, len(exprs))
	for i, e := range exprs {
		out[i] = Rule{Path: e, Meaning: meaning}
	}
	return out
}

// Compile компилирует выражения всех правил
func (t *Table) Compile() error {
	for _, set := range [][]Rule{t.Audio, t.JobID, t.Status, t.Output} {
		for i := range set {
			expr, err := jmespath.Compile(set[i].Path)
			if err != nil {
				return fmt.Errorf("некорректное правило %q: %w", set[i].Path, err)
			}
			set[i].expr = expr
		}
	}
	return nil
}

// MustCompile компилирует таблицу и паникует при ошибке
func (t *Table) MustCompile() *Table {
	if err := t.Compile(); err != nil {
		panic(err)
	}
	return t
}

// AudioReference возвращает ссылку на аудио из известных полей
func (t *Table) AudioReference(v payload.Value) (string, *Rule, bool) {
	data := v.Interface()
	for i := range t.Audio {
		s, ok := searchString(&t.Audio[i], data)
		if !ok {
			continue
		}
		ref, ok := reference(s)
		if t.Audio[i].Strict {
			ref, ok = scanner.Classify(strings.TrimSpace(s))
		}
		if ok {
			return ref, &t.Audio[i], true
		}
	}
	return "", nil, false
}

// JobIdentifier возвращает идентификатор асинхронной задачи
func (t *Table) JobIdentifier(v payload.Value) (string, bool) {
	data := v.ExactInterface()
	for i := range t.JobID {
		res, ok := search(&t.JobID[i], data)
		if !ok {
			continue
		}
		switch id := res.(type) {
		case string:
			if id = strings.TrimSpace(id); id != "" {
				return id, true
			}
		case json.Number:
			return id.String(), true
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64), true
		}
	}
	return "", false
}

// Completed проверяет, что ответ содержит статус завершения
func (t *Table) Completed(v payload.Value) bool {
	data := v.Interface()
	for i := range t.Status {
		s, ok := searchString(&t.Status[i], data)
		if !ok {
			continue
		}
		for _, marker := range t.CompletionMarkers {
			if strings.EqualFold(strings.TrimSpace(s), marker) {
				return true
			}
		}
	}
	return false
}

// OutputReference возвращает ссылку из структурированного поля output
func (t *Table) OutputReference(v payload.Value) (string, bool) {
	data := v.Interface()
	for i := range t.Output {
		s, ok := searchString(&t.Output[i], data)
		if !ok {
			continue
		}
		if ref, ok := reference(s); ok {
			return ref, true
		}
	}
	return "", false
}

// reference принимает любую http(s) ссылку из явного поля, даже без расширения
func reference(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if scanner.IsHTTPURL(s) {
		return s, true
	}
	return scanner.Classify(s)
}

func search(r *Rule, data any) (any, bool) {
	// правило без Compile не участвует в поиске
	if r.expr == nil {
		return nil, false
	}
	res, err := r.expr.Search(data)
	if err != nil || res == nil {
		return nil, false
	}
	return res, true
}

func searchString(r *Rule, data any) (string, bool) {
	res, ok := search(r, data)
	if !ok {
		return "", false
	}
	s, ok := res.(string)
	return s, ok && s != ""
}
