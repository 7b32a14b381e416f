package source

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

func isUTF8Name(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if isUTF8Name(name) {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", name, err)
	}
	return enc, nil
}

// decode перекодирует content из кодировки name в UTF-8.
// Второе значение сообщает, была ли выполнена перекодировка.
func decode(content []byte, name string) ([]byte, bool, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, false, err
	}
	if enc == nil {
		return content, false, nil
	}
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
