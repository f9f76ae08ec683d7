// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"math"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/app/notification"
	"github.com/osa030/previewbox/internal/app/playback"
	"github.com/osa030/previewbox/internal/app/session"
)

// ServiceName is the fully-qualified name of the preview service.
const ServiceName = "previewbox.v1.PreviewService"

// Procedures
const (
	OpenSessionProcedure  = "/" + ServiceName + "/OpenSession"
	SelectTrackProcedure  = "/" + ServiceName + "/SelectTrack"
	PlayProcedure         = "/" + ServiceName + "/Play"
	PauseProcedure        = "/" + ServiceName + "/Pause"
	SeekProcedure         = "/" + ServiceName + "/Seek"
	NextProcedure         = "/" + ServiceName + "/Next"
	PrevProcedure         = "/" + ServiceName + "/Prev"
	GetSnapshotProcedure  = "/" + ServiceName + "/GetSnapshot"
	CloseSessionProcedure = "/" + ServiceName + "/CloseSession"
	WatchSessionProcedure = "/" + ServiceName + "/WatchSession"
)

// watchBuffer is the number of notifications queued per watcher.
const watchBuffer = 32

// PreviewService implements the PreviewService RPC.
type PreviewService struct {
	sessions *session.Manager
}

// NewPreviewService creates a new PreviewService.
func NewPreviewService(sessions *session.Manager) *PreviewService {
	return &PreviewService{sessions: sessions}
}

// NewPreviewServiceHandler builds the HTTP handler serving svc and returns
// the path it is mounted on.
func NewPreviewServiceHandler(svc *PreviewService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(OpenSessionProcedure, connect.NewUnaryHandler(OpenSessionProcedure, svc.OpenSession, opts...))
	mux.Handle(SelectTrackProcedure, connect.NewUnaryHandler(SelectTrackProcedure, svc.SelectTrack, opts...))
	mux.Handle(PlayProcedure, connect.NewUnaryHandler(PlayProcedure, svc.Play, opts...))
	mux.Handle(PauseProcedure, connect.NewUnaryHandler(PauseProcedure, svc.Pause, opts...))
	mux.Handle(SeekProcedure, connect.NewUnaryHandler(SeekProcedure, svc.Seek, opts...))
	mux.Handle(NextProcedure, connect.NewUnaryHandler(NextProcedure, svc.Next, opts...))
	mux.Handle(PrevProcedure, connect.NewUnaryHandler(PrevProcedure, svc.Prev, opts...))
	mux.Handle(GetSnapshotProcedure, connect.NewUnaryHandler(GetSnapshotProcedure, svc.GetSnapshot, opts...))
	mux.Handle(CloseSessionProcedure, connect.NewUnaryHandler(CloseSessionProcedure, svc.CloseSession, opts...))
	mux.Handle(WatchSessionProcedure, connect.NewServerStreamHandler(WatchSessionProcedure, svc.WatchSession, opts...))
	return "/" + ServiceName + "/", mux
}

// OpenSession opens a preview session. Manifest failures are reported in
// LoadError; the session is still opened with an empty playlist.
func (s *PreviewService) OpenSession(
	ctx context.Context,
	req *connect.Request[OpenSessionRequest],
) (*connect.Response[OpenSessionResponse], error) {
	sess, err := s.sessions.Open(ctx, req.Msg.ShareID)
	if err != nil {
		return nil, toConnectError(err)
	}

	res := &OpenSessionResponse{
		SessionID:  sess.ID,
		AlbumTitle: sess.AlbumTitle(),
		Tracks:     toTracks(sess.Engine().Playlist()),
		Snapshot:   toSnapshot(sess.Engine().Snapshot()),
	}
	if sess.Manifest != nil {
		res.CoverURL = sess.Manifest.CoverURL
	}
	if sess.LoadErr != nil {
		res.LoadError = sess.LoadErr.Error()
	}
	return connect.NewResponse(res), nil
}

// SelectTrack selects a track and requests playback of it.
func (s *PreviewService) SelectTrack(
	ctx context.Context,
	req *connect.Request[SelectTrackRequest],
) (*connect.Response[SnapshotResponse], error) {
	return s.command(req.Msg.SessionID, func(e *playback.Engine) {
		e.SelectTrack(req.Msg.Index)
	})
}

// Play starts or resumes the active track.
func (s *PreviewService) Play(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[SnapshotResponse], error) {
	return s.command(req.Msg.SessionID, (*playback.Engine).Play)
}

// Pause pauses playback.
func (s *PreviewService) Pause(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[SnapshotResponse], error) {
	return s.command(req.Msg.SessionID, (*playback.Engine).Pause)
}

// Seek moves the active track within the preview window.
func (s *PreviewService) Seek(
	ctx context.Context,
	req *connect.Request[SeekRequest],
) (*connect.Response[SnapshotResponse], error) {
	if math.IsNaN(req.Msg.Seconds) || math.IsInf(req.Msg.Seconds, 0) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("seconds must be finite"))
	}
	return s.command(req.Msg.SessionID, func(e *playback.Engine) {
		e.Seek(secondsToDuration(req.Msg.Seconds))
	})
}

// Next switches to the following track.
func (s *PreviewService) Next(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[SnapshotResponse], error) {
	return s.command(req.Msg.SessionID, (*playback.Engine).Next)
}

// Prev switches to the preceding track.
func (s *PreviewService) Prev(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[SnapshotResponse], error) {
	return s.command(req.Msg.SessionID, (*playback.Engine).Prev)
}

// GetSnapshot returns the current session state.
func (s *PreviewService) GetSnapshot(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[SnapshotResponse], error) {
	return s.command(req.Msg.SessionID, func(*playback.Engine) {})
}

// CloseSession closes a session.
func (s *PreviewService) CloseSession(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[CloseSessionResponse], error) {
	if err := s.sessions.Close(req.Msg.SessionID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CloseSessionResponse{}), nil
}

// WatchSession streams snapshot notifications. The first message is the
// current state.
func (s *PreviewService) WatchSession(
	ctx context.Context,
	req *connect.Request[SessionRequest],
	stream *connect.ServerStream[Notification],
) error {
	sess, err := s.sessions.Get(req.Msg.SessionID)
	if err != nil {
		return toConnectError(err)
	}

	// Subscribe first so nothing emitted after the initial state is missed
	adapter := &notificationStreamAdapter{ctx: ctx, ch: make(chan *notification.Notification, watchBuffer)}
	subscriptionID := sess.Notifier().Subscribe(adapter)
	defer sess.Notifier().Unsubscribe(subscriptionID)

	current := sess.Engine().Snapshot()
	initial := &Notification{SessionID: sess.ID, Snapshot: toSnapshot(current)}
	if latest := sess.Notifier().Latest(); latest != nil {
		initial.SequenceNo = latest.SequenceNo
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return nil
		case n := <-adapter.ch:
			if n.Snapshot.Seq <= current.Seq {
				continue
			}
			if err := stream.Send(toNotification(n)); err != nil {
				zlog.Debug().Err(err).Msgf("connect: watch stream closed: session=%s", sess.ID)
				return err
			}
		}
	}
}

// command runs fn on the session engine and returns the resulting snapshot.
func (s *PreviewService) command(sessionID string, fn func(*playback.Engine)) (*connect.Response[SnapshotResponse], error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	fn(sess.Engine())
	return connect.NewResponse(&SnapshotResponse{Snapshot: toSnapshot(sess.Engine().Snapshot())}), nil
}

// notificationStreamAdapter queues notifications for a WatchSession stream.
type notificationStreamAdapter struct {
	ctx context.Context
	ch  chan *notification.Notification
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	select {
	case a.ch <- n:
		return nil
	case <-a.ctx.Done():
		return a.ctx.Err()
	}
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, session.ErrManagerClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
