package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// UTMParam одна пара ключ-значение UTM
type UTMParam struct {
	Key   string
	Value string
}

// UTMParams упорядоченный набор UTM-параметров, в JSON представлен объектом
type UTMParams []UTMParam

// Get возвращает значение по ключу
func (p UTMParams) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set заменяет значение существующего ключа или добавляет новый в конец
func (p UTMParams) Set(key, value string) UTMParams {
	for i := range p {
		if p[i].Key == key {
			p[i].Value = value
			return p
		}
	}
	return append(p, UTMParam{Key: key, Value: value})
}

// MarshalJSON сериализует параметры в JSON-объект с сохранением порядка
func (p UTMParams) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON читает JSON-объект строк; null и [] дают пустой набор
func (p *UTMParams) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		*p = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("append_utm must be an object")
	}
	var out UTMParams
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("append_utm[%s]: %w", key, err)
		}
		out = out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}
