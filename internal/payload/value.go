package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind тип значения в ответе провайдера
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindBytes
	KindList
	KindObject
)

// String возвращает название типа
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Field пара ключ-значение объекта, порядок полей сохраняется как в документе
type Field struct {
	Key   string
	Value Value
}

// Value представляет произвольное значение JSON от провайдера.
// Нулевое значение - null.
type Value struct {
	kind   Kind
	b      bool
	num    json.Number
	str    string
	raw    []byte
	items  []Value
	fields []Field
}

// Null возвращает значение null
func Null() Value { return Value{} }

// Bool создает булево значение
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number создает числовое значение
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// String создает строковое значение
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bytes создает бинарное значение
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// List создает список
func List(items ...Value) Value { return Value{kind: KindList, items: items} }

// Object создает объект с заданным порядком полей
func Object(fields ...Field) Value { return Value{kind: KindObject, fields: fields} }

// F сокращение для построения поля объекта
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Kind возвращает тип значения
func (v Value) Kind() Kind { return v.kind }

// IsNull проверяет, является ли значение null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str возвращает строку, если значение строковое
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Items возвращает элементы списка
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.items
}

// Fields возвращает поля объекта в порядке документа
func (v Value) Fields() []Field {
	if v.kind != KindObject {
		return nil
	}
	return v.fields
}

// Get возвращает первое поле объекта с указанным ключом
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.Fields() {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Scalar возвращает строковое представление скалярного значения
// (строка или число). Используется для идентификаторов задач.
func (v Value) Scalar() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, v.str != ""
	case KindNumber:
		return v.num.String(), true
	default:
		return "", false
	}
}

// Interface преобразует значение в дерево map/slice для JMESPath и логов
func (v Value) Interface() any {
	return v.tree(false)
}

// ExactInterface как Interface, но числа остаются json.Number без потери точности
func (v Value) ExactInterface() any {
	return v.tree(true)
}

func (v Value) tree(exact bool) any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if exact {
			return v.num
		}
		if f, err := v.num.Float64(); err == nil {
			return f
		}
		return v.num.String()
	case KindString:
		return v.str
	case KindBytes:
		return v.raw
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.tree(exact)
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.fields))
		for _, f := range v.fields {
			// первое вхождение ключа побеждает, как и в Get
			if _, exists := out[f.Key]; !exists {
				out[f.Key] = f.Value.tree(exact)
			}
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON сериализует значение с сохранением порядка полей
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(v.num.String())
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindBytes:
		// []byte кодируется в base64, как принято в encoding/json
		b, err := json.Marshal(v.raw)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("неизвестный тип значения: %d", v.kind)
	}
	return nil
}

// UnmarshalJSON разбирает JSON с сохранением порядка полей
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse разбирает JSON документ в Value
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("лишние данные после JSON значения")
	}

	return v, nil
}

// FromBody разбирает тело ответа провайдера. Тело, не являющееся JSON,
// представляется одной строкой, чтобы сканер мог найти в нем ссылку.
func FromBody(body []byte) Value {
	if len(bytes.TrimSpace(body)) == 0 {
		return Null()
	}
	v, err := Parse(body)
	if err != nil {
		return String(strings.TrimSpace(string(body)))
	}
	return v
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("ошибка чтения JSON: %w", err)
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := make([]Value, 0)
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("ошибка чтения конца списка: %w", err)
			}
			return List(items...), nil
		case '{':
			fields := make([]Field, 0)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, fmt.Errorf("ошибка чтения ключа: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("некорректный ключ объекта: %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				fields = append(fields, Field{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("ошибка чтения конца объекта: %w", err)
			}
			return Object(fields...), nil
		}
	}

	return Value{}, fmt.Errorf("неожиданный токен JSON: %v", tok)
}
