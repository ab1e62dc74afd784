package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cardroom/cardroom/internal/core"
	"github.com/cardroom/cardroom/internal/packet"
	"github.com/cardroom/cardroom/internal/session"
)

const (
	sessionHeader = "X-Session-Id"
	// Sessions that have not spoken for this long are torn down by the reaper.
	sessionIdleTimeout = 10 * time.Minute
)

// frontend binds the session core to HTTP. Each client speaks a
// request/response protocol: one JSON packet per POST, answered with the
// batch of outbound packets the dispatch produced, with long polls held open
// until packets arrive or the hold times out.
//
// Clients are identified by an opaque session id issued on first contact;
// transport-level disconnection is invisible to HTTP, so sessions end by
// idle timeout or an explicit quit.
type frontend struct {
	Address string
	Config  *core.Config
	Logger  *logrus.Logger
	Service session.Service

	mu       sync.Mutex
	sessions map[string]*webSession
	server   *http.Server
}

type webSession struct {
	id       string
	avatar   *session.Avatar
	lastSeen time.Time
}

// Start launches the HTTP listener and the idle-session reaper. Context
// cancellation shuts both down; the WaitGroup is released once the listener
// has exited.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	f.sessions = make(map[string]*webSession)

	mux := http.NewServeMux()
	mux.HandleFunc("/cardroom", f.handlePacket)
	f.server = &http.Server{Addr: f.Address, Handler: mux}

	wg.Add(1)
	go func() {
		defer wg.Done()
		f.Logger.Printf("[CARDROOM] waiting for requests on %v", f.Address)
		if err := f.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			f.Logger.Errorf("error running http server: %v", err)
		}
		f.Logger.Infof("[CARDROOM] exited")
	}()

	go f.reapIdleSessions(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := f.server.Shutdown(shutdownCtx); err != nil {
			f.Logger.Warnf("error shutting down http server: %v", err)
		}
	}()

	return nil
}

// handlePacket is the single protocol endpoint: decode one packet, run it
// through the client's avatar, reply with the resulting batch.
func (f *frontend) handlePacket(w http.ResponseWriter, r *http.Request) {
	defer f.recoverFromHandlerPanic(r)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}
	var pkt packet.Packet
	if err := json.Unmarshal(body, &pkt); err != nil {
		http.Error(w, "malformed packet", http.StatusBadRequest)
		return
	}

	ws, created := f.resolveSession(r.Header.Get(sessionHeader))
	if ws == nil {
		http.Error(w, "session limit reached", http.StatusServiceUnavailable)
		return
	}
	if created {
		f.Logger.Infof("[CARDROOM] accepted session %s from %s", ws.id, r.RemoteAddr)
	}
	w.Header().Set(sessionHeader, ws.id)

	res := <-ws.avatar.HandleInbound(&pkt, body)
	if res.Err != nil {
		f.Logger.Warnf("error handling packet type %d for session %s: %v", pkt.Type, ws.id, res.Err)
		w.WriteHeader(http.StatusBadGateway)
		res.Packets = []*packet.Packet{
			packet.Error(pkt.Type, packet.CodeGeneralFailure, "remote table unreachable"),
		}
	}

	if pkt.Type == packet.QuitType {
		f.endSession(ws.id)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res.Packets); err != nil {
		f.Logger.Warnf("error writing response for session %s: %v", ws.id, err)
	}
}

// resolveSession returns the existing session for an id, or issues a new one.
// A nil session means the connection cap is reached.
func (f *frontend) resolveSession(id string) (*webSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ws, ok := f.sessions[id]; ok {
		ws.lastSeen = time.Now()
		return ws, false
	}

	if f.Config.MaxConnections > 0 && len(f.sessions) >= f.Config.MaxConnections {
		return nil, false
	}

	avatar := session.New(f.Service, f.Logger)
	avatar.SetDebugPackets(f.Config.Logging.PacketLoggingEnabled)
	ws := &webSession{
		id:       uuid.NewString(),
		avatar:   avatar,
		lastSeen: time.Now(),
	}
	f.sessions[ws.id] = ws
	return ws, true
}

func (f *frontend) endSession(id string) {
	f.mu.Lock()
	ws, ok := f.sessions[id]
	delete(f.sessions, id)
	f.mu.Unlock()

	if ok {
		ws.avatar.ConnectionLost()
		f.Logger.Infof("[CARDROOM] ended session %s", id)
	}
}

// reapIdleSessions disconnects sessions that stopped talking, standing in
// for the connection-closed event a stream transport would deliver.
func (f *frontend) reapIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-sessionIdleTimeout)
			f.mu.Lock()
			var expired []string
			for id, ws := range f.sessions {
				if ws.lastSeen.Before(cutoff) {
					expired = append(expired, id)
				}
			}
			f.mu.Unlock()

			for _, id := range expired {
				f.Logger.Infof("[CARDROOM] reaping idle session %s", id)
				f.endSession(id)
			}
		}
	}
}

// recoverFromHandlerPanic is the failsafe that catches any panics from the
// dispatch path so one bad packet cannot take the listener down.
func (f *frontend) recoverFromHandlerPanic(r *http.Request) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			r.RemoteAddr, fmt.Sprint(err), debug.Stack())
	}
}
