package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/yhsiang/seqfile/pkg/filelock"
	"github.com/yhsiang/seqfile/pkg/seqfile"
	"github.com/yhsiang/seqfile/pkg/websocket"
)

var ErrAckTimeout = errors.New("timed out waiting for ack")
var ErrRejected = errors.New("rejected by server")

type ClientOptions struct {
	AckTimeout   time.Duration
	PollInterval time.Duration

	// AllExtensions removes every file sharing the shipped number, e.g. a
	// .sha1 next to the data file.
	AllExtensions bool
}

// SyncClient drains a queue to a server: the head is sent, and only once the
// server acknowledges it is the number dequeued and the file removed. Every
// poll interval the directory is rescanned so files queued by other
// processes are shipped too.
//
//go:generate callbackgen -type SyncClient
type SyncClient struct {
	client *websocket.WebSocketClient
	queue  *seqfile.SequentialFile
	opts   ClientOptions
	lock   *filelock.FileLock

	wake chan struct{}
	acks chan Message

	// setAside holds rejected numbers so rescans do not queue them again.
	// Only touched from Run.
	setAside map[int]struct{}

	shippedCallbacks  []func(fileNum int)
	rejectedCallbacks []func(fileNum int, reason string)
}

func NewSyncClient(url string, queue *seqfile.SequentialFile, opts ClientOptions) *SyncClient {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}

	s := &SyncClient{
		client:   websocket.New(url, http.Header{}),
		queue:    queue,
		opts:     opts,
		lock:     filelock.ForDir(queue.Dir()),
		wake:     make(chan struct{}, 1),
		acks:     make(chan Message, 16),
		setAside: make(map[int]struct{}),
	}

	s.client.SetReadTimeout(60 * time.Second)
	s.client.OnConnect(func(c *websocket.WebSocketClient) {
		logger.Infof("connected to %s", c.Url)
		s.Wake()
	})
	s.client.OnMessage(s.handleMessage)
	queue.OnEnqueue(func(int) { s.Wake() })

	return s
}

// Wake makes Run check the queue now.
func (s *SyncClient) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *SyncClient) handleMessage(m websocket.Message) {
	var msg Message
	if err := json.Unmarshal(m.Body, &msg); err != nil {
		logger.WithError(err).Error("failed to decode json")
		return
	}

	switch msg.Command {
	case CommandAck, CommandNak:
		select {
		case s.acks <- msg:
		default:
			logger.Warnf("dropping %s, nobody waiting", msg.Command)
		}
	default:
		logger.Warnf("unknown command %q", msg.Command)
	}
}

// Run ships queued files until ctx is done.
func (s *SyncClient) Run(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		logger.WithError(err).Error("failed to connect, will keep retrying")
	}
	defer s.client.Close()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		s.drain(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-ticker.C:
			s.refresh()
		}
	}
}

// refresh merges files other processes wrote into the queue. It is skipped
// while another holder has the directory lock, e.g. a push in progress.
func (s *SyncClient) refresh() {
	acquired, err := s.lock.TryLock()
	if err != nil {
		logger.WithError(err).Warn("cannot lock queue for rescan")
		return
	}
	if !acquired {
		logger.Debugf("%s is locked, rescan later", s.queue.Dir())
		return
	}
	defer s.lock.Unlock()

	added, ok := s.queue.Rescan(func(fileNum int) bool {
		_, skip := s.setAside[fileNum]
		return skip
	})
	if ok && added > 0 {
		logger.Infof("picked up %d new files in %s", added, s.queue.Dir())
	}
}

// drain ships files until the queue is empty or shipping stalls.
func (s *SyncClient) drain(ctx context.Context) {
	for ctx.Err() == nil && s.client.Connected() {
		fileNum := s.queue.Peek()
		if fileNum == seqfile.NoFile {
			return
		}

		err := s.ship(ctx, fileNum)
		switch {
		case err == nil:
			s.queue.Dequeue(true)
			if err := s.queue.RemoveFileNum(fileNum, s.opts.AllExtensions); err != nil {
				logger.WithError(err).Errorf("shipped %d but could not remove it", fileNum)
			}
			s.EmitShipped(fileNum)

		case errors.Is(err, ErrRejected), os.IsNotExist(errors.Cause(err)):
			// keep the file for inspection, but stop it from blocking the
			// rest of the queue; it comes back when the process restarts
			logger.WithError(err).Errorf("skipping %d", fileNum)
			s.queue.RemoveNth(0)
			s.setAside[fileNum] = struct{}{}
			s.EmitRejected(fileNum, err.Error())

		default:
			logger.WithError(err).Warnf("failed to ship %d, will retry", fileNum)
			return
		}
	}
}

func (s *SyncClient) ship(ctx context.Context, fileNum int) error {
	path, err := s.queue.PathFor(fileNum)
	if err != nil {
		return errors.Wrap(ErrRejected, err.Error())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	sum, err := Checksum(bytes.NewReader(data))
	if err != nil {
		return err
	}

	file := &File{
		ID:       uuid.New().String(),
		Name:     filepath.Base(path),
		Size:     int64(len(data)),
		Checksum: sum,
	}

	if err := s.client.WriteJSON(Message{Command: CommandPut, File: file}); err != nil {
		return errors.Wrap(err, "send put")
	}
	if err := s.client.WriteBinaryMessage(data); err != nil {
		return errors.Wrap(err, "send content")
	}

	timeout := time.NewTimer(s.opts.AckTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return errors.Wrapf(ErrAckTimeout, "file %s", file.Name)
		case msg := <-s.acks:
			if msg.File != nil && msg.File.ID != file.ID {
				logger.Debugf("ignoring stale %s for %s", msg.Command, msg.File.Name)
				continue
			}
			if msg.Command == CommandNak {
				return errors.Wrap(ErrRejected, msg.Error)
			}
			if msg.File != nil {
				logger.Infof("shipped %s as remote file %d", file.Name, msg.File.FileNum)
			}
			return nil
		}
	}
}
