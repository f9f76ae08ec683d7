package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client is a PreviewService client.
type Client struct {
	openSession  *connect.Client[OpenSessionRequest, OpenSessionResponse]
	selectTrack  *connect.Client[SelectTrackRequest, SnapshotResponse]
	play         *connect.Client[SessionRequest, SnapshotResponse]
	pause        *connect.Client[SessionRequest, SnapshotResponse]
	seek         *connect.Client[SeekRequest, SnapshotResponse]
	next         *connect.Client[SessionRequest, SnapshotResponse]
	prev         *connect.Client[SessionRequest, SnapshotResponse]
	getSnapshot  *connect.Client[SessionRequest, SnapshotResponse]
	closeSession *connect.Client[SessionRequest, CloseSessionResponse]
	watchSession *connect.Client[SessionRequest, Notification]
}

// NewClient creates a client for the service at baseURL. token is sent in
// APITokenHeader when not empty.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(&tokenClientInterceptor{token: token}),
	}, opts...)

	return &Client{
		openSession:  connect.NewClient[OpenSessionRequest, OpenSessionResponse](httpClient, baseURL+OpenSessionProcedure, opts...),
		selectTrack:  connect.NewClient[SelectTrackRequest, SnapshotResponse](httpClient, baseURL+SelectTrackProcedure, opts...),
		play:         connect.NewClient[SessionRequest, SnapshotResponse](httpClient, baseURL+PlayProcedure, opts...),
		pause:        connect.NewClient[SessionRequest, SnapshotResponse](httpClient, baseURL+PauseProcedure, opts...),
		seek:         connect.NewClient[SeekRequest, SnapshotResponse](httpClient, baseURL+SeekProcedure, opts...),
		next:         connect.NewClient[SessionRequest, SnapshotResponse](httpClient, baseURL+NextProcedure, opts...),
		prev:         connect.NewClient[SessionRequest, SnapshotResponse](httpClient, baseURL+PrevProcedure, opts...),
		getSnapshot:  connect.NewClient[SessionRequest, SnapshotResponse](httpClient, baseURL+GetSnapshotProcedure, opts...),
		closeSession: connect.NewClient[SessionRequest, CloseSessionResponse](httpClient, baseURL+CloseSessionProcedure, opts...),
		watchSession: connect.NewClient[SessionRequest, Notification](httpClient, baseURL+WatchSessionProcedure, opts...),
	}
}

// OpenSession opens a preview session for shareID.
func (c *Client) OpenSession(ctx context.Context, shareID string) (*OpenSessionResponse, error) {
	res, err := c.openSession.CallUnary(ctx, connect.NewRequest(&OpenSessionRequest{ShareID: shareID}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// SelectTrack selects and plays track index.
func (c *Client) SelectTrack(ctx context.Context, sessionID string, index int) (*Snapshot, error) {
	return snapshotOf(c.selectTrack.CallUnary(ctx, connect.NewRequest(&SelectTrackRequest{SessionID: sessionID, Index: index})))
}

// Play starts or resumes playback.
func (c *Client) Play(ctx context.Context, sessionID string) (*Snapshot, error) {
	return snapshotOf(c.play.CallUnary(ctx, connect.NewRequest(&SessionRequest{SessionID: sessionID})))
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context, sessionID string) (*Snapshot, error) {
	return snapshotOf(c.pause.CallUnary(ctx, connect.NewRequest(&SessionRequest{SessionID: sessionID})))
}

// Seek moves the active track to seconds.
func (c *Client) Seek(ctx context.Context, sessionID string, seconds float64) (*Snapshot, error) {
	return snapshotOf(c.seek.CallUnary(ctx, connect.NewRequest(&SeekRequest{SessionID: sessionID, Seconds: seconds})))
}

// Next switches to the following track.
func (c *Client) Next(ctx context.Context, sessionID string) (*Snapshot, error) {
	return snapshotOf(c.next.CallUnary(ctx, connect.NewRequest(&SessionRequest{SessionID: sessionID})))
}

// Prev switches to the preceding track.
func (c *Client) Prev(ctx context.Context, sessionID string) (*Snapshot, error) {
	return snapshotOf(c.prev.CallUnary(ctx, connect.NewRequest(&SessionRequest{SessionID: sessionID})))
}

// GetSnapshot returns the session state.
func (c *Client) GetSnapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	return snapshotOf(c.getSnapshot.CallUnary(ctx, connect.NewRequest(&SessionRequest{SessionID: sessionID})))
}

// CloseSession closes the session.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	_, err := c.closeSession.CallUnary(ctx, connect.NewRequest(&SessionRequest{SessionID: sessionID}))
	return err
}

// WatchSession calls fn for every notification until the stream ends, fn
// returns false or ctx is cancelled.
func (c *Client) WatchSession(ctx context.Context, sessionID string, fn func(*Notification) bool) error {
	stream, err := c.watchSession.CallServerStream(ctx, connect.NewRequest(&SessionRequest{SessionID: sessionID}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if !fn(stream.Msg()) {
			return nil
		}
	}
	return stream.Err()
}

func snapshotOf(res *connect.Response[SnapshotResponse], err error) (*Snapshot, error) {
	if err != nil {
		return nil, err
	}
	return res.Msg.Snapshot, nil
}
