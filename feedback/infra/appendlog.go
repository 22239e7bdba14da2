package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"feedback-drop/feedback/domain"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

const logFileMode os.FileMode = 0o600

// logFile é o subconjunto de *os.File usado pelo writer.
type logFile interface {
	io.Writer
	Sync() error
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Close() error
}

func openForAppend(path string) (logFile, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode)
}

type appendReq struct {
	payload string
	done    chan error
}

// AppendLog serializa todos os appends por uma goroutine writer. Entre
// processos a exclusão é feita com flock no próprio arquivo. Ordem de escrita
// = ordem em que os appends entram na fila.
type AppendLog struct {
	path string
	log  *slog.Logger

	now   func() time.Time
	open  func(path string) (logFile, error)
	chmod func(path string, mode os.FileMode) error

	lock      *flock.Flock
	chmodWarn rate.Sometimes

	reqs      chan appendReq
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type AppendLogOption func(*AppendLog)

func WithNow(now func() time.Time) AppendLogOption {
	return func(l *AppendLog) { l.now = now }
}

func withOpener(open func(string) (logFile, error)) AppendLogOption {
	return func(l *AppendLog) { l.open = open }
}

func withChmod(chmod func(string, os.FileMode) error) AppendLogOption {
	return func(l *AppendLog) { l.chmod = chmod }
}

// NewAppendLog inicia o writer. O arquivo é criado no primeiro append.
func NewAppendLog(path string, log *slog.Logger, opts ...AppendLogOption) *AppendLog {
	l := &AppendLog{
		path:      path,
		log:       log,
		now:       time.Now,
		open:      openForAppend,
		chmod:     os.Chmod,
		lock:      flock.New(path),
		chmodWarn: rate.Sometimes{First: 1, Interval: 10 * time.Minute},
		reqs:      make(chan appendReq),
		quit:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.writer()
	return l
}

// Path devolve o caminho do arquivo de log.
func (l *AppendLog) Path() string { return l.path }

// Append grava o payload como uma nova entrada datada com o dia atual.
//
// Se a chamada já entrou na fila o append é concluído mesmo que ctx seja
// cancelado; não existe append pela metade.
func (l *AppendLog) Append(ctx context.Context, payload string) error {
	req := appendReq{payload: payload, done: make(chan error, 1)}

	select {
	case l.reqs <- req:
	case <-l.quit:
		return domain.ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.done
}

// ReadAll lê todas as entradas, em ordem de escrita. Log inexistente = vazio.
func (l *AppendLog) ReadAll(ctx context.Context) ([]domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// flock cria o arquivo ao travar; log que ainda não existe fica sem criar.
	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	// flock é por descritor: esta instância espera o writer terminar a entrada.
	rl := flock.New(l.path)
	if err := rl.RLock(); err != nil {
		return nil, fmt.Errorf("lock feedback log: %w", err)
	}
	defer func() { _ = rl.Unlock() }()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()

	return domain.ParseLog(f)
}

// Close para o writer depois do append em andamento. Appends posteriores
// retornam domain.ErrStoreClosed.
func (l *AppendLog) Close() error {
	l.closeOnce.Do(func() { close(l.quit) })
	l.wg.Wait()
	return nil
}

func (l *AppendLog) writer() {
	defer l.wg.Done()
	for {
		select {
		case <-l.quit:
			return
		case req := <-l.reqs:
			req.done <- l.write(req.payload)
		}
	}
}

func (l *AppendLog) write(payload string) error {
	entry, err := domain.FormatEntry(domain.Entry{
		Date:    domain.CoarseDate(l.now()),
		Payload: payload,
	})
	if err != nil {
		return err
	}

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock feedback log: %w", classify(err))
	}
	defer func() { _ = l.lock.Unlock() }()

	if err := l.appendLocked([]byte(entry)); err != nil {
		return err
	}

	if err := l.chmod(l.path, logFileMode); err != nil {
		l.chmodWarn.Do(func() {
			l.log.Warn("Failed to restrict feedback log permissions", "err", err)
		})
	}
	return nil
}

func (l *AppendLog) appendLocked(data []byte) (err error) {
	f, err := l.open(l.path)
	if err != nil {
		return fmt.Errorf("open feedback log: %w", classify(err))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close feedback log: %w", classify(cerr))
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat feedback log: %w", classify(err))
	}
	size := info.Size()

	if _, err := f.Write(data); err != nil {
		l.rollback(f, size)
		return fmt.Errorf("append feedback entry: %w", classify(err))
	}
	if err := f.Sync(); err != nil {
		l.rollback(f, size)
		return fmt.Errorf("sync feedback log: %w", classify(err))
	}
	return nil
}

// rollback corta uma escrita parcial para o log continuar terminando numa
// entrada completa. Só roda com o lock exclusivo na mão.
func (l *AppendLog) rollback(f logFile, size int64) {
	if err := f.Truncate(size); err != nil {
		l.log.Error("Failed to roll back partial feedback entry", "err", err)
	}
}

// classify marca falta de espaço/cota com domain.ErrStorageFull, mantendo a
// causa original na cadeia.
func classify(err error) error {
	if errors.Is(err, unix.ENOSPC) || errors.Is(err, unix.EDQUOT) {
		return errors.Join(domain.ErrStorageFull, err)
	}
	return err
}
