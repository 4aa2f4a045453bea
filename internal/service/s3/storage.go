// storage.go
package s3

import (
	"context"
	"io"
	"net/url"
	"strings"
)

// object отдает тело объекта и отменяет контекст запроса при закрытии
type object struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (o *object) Close() error {
	err := o.ReadCloser.Close()
	o.cancel()
	return err
}

// objectURL склеивает публичный адрес бакета с ключом объекта
func objectURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
