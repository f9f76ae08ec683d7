package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
)

const (
	// APITokenHeader is the header name for the API token.
	APITokenHeader = "X-Api-Token"
)

// apiTokenInterceptor validates the API token of unary and streaming calls.
type apiTokenInterceptor struct {
	token string
}

// NewAPITokenInterceptor creates an interceptor that rejects requests without
// the configured token. An empty token disables the check.
func NewAPITokenInterceptor(token string) connect.Interceptor {
	return &apiTokenInterceptor{token: token}
}

func (i *apiTokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		if err := i.check(req.Header().Get(APITokenHeader)); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *apiTokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *apiTokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.check(conn.RequestHeader().Get(APITokenHeader)); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *apiTokenInterceptor) check(token string) error {
	if i.token == "" {
		return nil
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(i.token)) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, nil)
	}
	return nil
}

// tokenClientInterceptor attaches the API token to outgoing calls.
type tokenClientInterceptor struct {
	token string
}

func (i *tokenClientInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient && i.token != "" {
			req.Header().Set(APITokenHeader, i.token)
		}
		return next(ctx, req)
	}
}

func (i *tokenClientInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if i.token != "" {
			conn.RequestHeader().Set(APITokenHeader, i.token)
		}
		return conn
	}
}

func (i *tokenClientInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
