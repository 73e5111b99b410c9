package service

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
)

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }

// Instrument wraps next so that every request it serves is appended to rec.
// The request body is read up front and replayed to next; the response is
// passed through unchanged while a copy is kept.
//
// The log entry is committed before any response bytes reach the
// connection, so a caller never sees a response its invocation is missing
// from. The entry's response is refreshed on every write and once more when
// next returns.
func Instrument(next http.Handler, rec *Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		at := time.Now()

		var reqBody []byte
		if r.Body != nil {
			reqBody, _ = io.ReadAll(r.Body)
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(reqBody))
		}

		var (
			status      = http.StatusOK
			wroteHeader bool
			respBody    bytes.Buffer
			slot        *Invocation
		)
		commit := func() {
			resp := ResponseRecord{
				StatusCode: status,
				Header:     w.Header().Clone(),
				Body:       bytes.Clone(respBody.Bytes()),
			}
			if slot != nil {
				rec.update(slot, resp)
				return
			}
			slot = rec.open(Invocation{
				Request: RequestRecord{
					Method:     r.Method,
					Path:       r.URL.Path,
					RawQuery:   r.URL.RawQuery,
					Header:     r.Header.Clone(),
					Body:       reqBody,
					RemoteAddr: r.RemoteAddr,
				},
				Response: resp,
				At:       at,
			})
		}
		record := func(next httpsnoop.WriteFunc, b []byte) (int, error) {
			wroteHeader = true
			mark := respBody.Len()
			respBody.Write(b)
			commit()
			n, err := next(b)
			if n < len(b) {
				respBody.Truncate(mark + n)
			}
			return n, err
		}

		ww := httpsnoop.Wrap(w, httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					if !wroteHeader && code >= 200 {
						status = code
						wroteHeader = true
					}
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					return record(next, b)
				}
			},
			ReadFrom: func(httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
				return func(src io.Reader) (int64, error) {
					return io.Copy(writerFunc(func(b []byte) (int, error) {
						return record(w.Write, b)
					}), src)
				}
			},
			Flush: func(next httpsnoop.FlushFunc) httpsnoop.FlushFunc {
				return func() {
					commit()
					next()
				}
			},
		})

		next.ServeHTTP(ww, r)
		commit()
	})
}
