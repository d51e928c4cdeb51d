package nmea

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
)

// clientQueueSize bounds how many sentences may be buffered for a slow
// client before the oldest is dropped.
const clientQueueSize = 32

// BroadcastServer accepts TCP clients and fans out every sentence passed to
// Send to each connected client through a small per-client queue, so a
// slow or stalled client can never back-pressure the caller.
type BroadcastServer struct {
	Addr string

	listener net.Listener
	started  atomic.Bool
	closed   atomic.Bool
	done     chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn  net.Conn
	queue chan string
	done  chan struct{}
}

// NewBroadcastServer constructs a server bound to addr.
func NewBroadcastServer(addr string) *BroadcastServer {
	return &BroadcastServer{Addr: addr, clients: make(map[*client]struct{})}
}

// Start binds the listener and begins accepting connections in the
// background.
func (s *BroadcastServer) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.acceptLoop()
	}()
	return nil
}

// Close stops accepting connections, disconnects all clients, and waits for
// the accept loop to exit.
func (s *BroadcastServer) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for c := range s.clients {
		s.removeLocked(c)
	}
	s.mu.Unlock()
	if s.done != nil {
		<-s.done
	}
	return nil
}

func (s *BroadcastServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			log.Printf("nmea: accept failed: %v", err)
			return
		}
		s.addClient(conn)
	}
}

func (s *BroadcastServer) addClient(conn net.Conn) {
	c := &client{conn: conn, queue: make(chan string, clientQueueSize), done: make(chan struct{})}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			_ = conn.Close()
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-c.done:
				return
			case sentence, ok := <-c.queue:
				if !ok {
					return
				}
				if _, err := conn.Write([]byte(sentence)); err != nil {
					return
				}
			}
		}
	}()
}

func (s *BroadcastServer) removeLocked(c *client) {
	delete(s.clients, c)
	close(c.done)
	_ = c.conn.Close()
}

// Send enqueues sentence for every connected client. If a client's queue is
// full, the oldest pending sentence for that client is dropped to make
// room — the emit loop never blocks here.
func (s *BroadcastServer) Send(sentence string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.queue <- sentence:
		default:
			select {
			case <-c.queue:
			default:
			}
			select {
			case c.queue <- sentence:
			default:
			}
		}
	}
}

// ClientCount returns the number of currently connected clients.
func (s *BroadcastServer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
