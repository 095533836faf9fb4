package timers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// TimerServiceName is the fully-qualified name of the TimerService service.
	TimerServiceName = "timer.v1.TimerService"

	TimerServiceStartTimerProcedure  = "/timer.v1.TimerService/StartTimer"
	TimerServiceGetTimerProcedure    = "/timer.v1.TimerService/GetTimer"
	TimerServiceCancelTimerProcedure = "/timer.v1.TimerService/CancelTimer"
	TimerServiceListTimersProcedure  = "/timer.v1.TimerService/ListTimers"
)

// JSONCodec lets connect carry plain Go structs as application/json.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Service implements the TimerService connect interface
type Service struct {
	app TimersApp
}

// NewService creates a new timers connect service
func NewService(app TimersApp) *Service {
	return &Service{
		app: app,
	}
}

// StartTimer starts a case timer
func (s *Service) StartTimer(ctx context.Context, req *connect.Request[StartTimerRequest]) (*connect.Response[TimerResponse], error) {
	timer, err := s.app.StartTimer(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&TimerResponse{Timer: timer}), nil
}

// GetTimer retrieves a case timer
func (s *Service) GetTimer(ctx context.Context, req *connect.Request[TimerKeyRequest]) (*connect.Response[TimerResponse], error) {
	timer, err := s.app.GetTimer(ctx, req.Msg.UserID, req.Msg.CaseNumber)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&TimerResponse{Timer: timer}), nil
}

// CancelTimer cancels a case timer
func (s *Service) CancelTimer(ctx context.Context, req *connect.Request[TimerKeyRequest]) (*connect.Response[CancelTimerResponse], error) {
	if err := s.app.CancelTimer(ctx, req.Msg.UserID, req.Msg.CaseNumber); err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&CancelTimerResponse{}), nil
}

// ListTimers retrieves every timer of a user
func (s *Service) ListTimers(ctx context.Context, req *connect.Request[ListTimersRequest]) (*connect.Response[ListTimersResponse], error) {
	timers, err := s.app.ListTimers(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&ListTimersResponse{Timers: timers}), nil
}

func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// NewTimerServiceHandler builds an HTTP handler for the service and returns the
// path on which to mount it.
func NewTimerServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(TimerServiceStartTimerProcedure, connect.NewUnaryHandler(TimerServiceStartTimerProcedure, svc.StartTimer, opts...))
	mux.Handle(TimerServiceGetTimerProcedure, connect.NewUnaryHandler(TimerServiceGetTimerProcedure, svc.GetTimer, opts...))
	mux.Handle(TimerServiceCancelTimerProcedure, connect.NewUnaryHandler(TimerServiceCancelTimerProcedure, svc.CancelTimer, opts...))
	mux.Handle(TimerServiceListTimersProcedure, connect.NewUnaryHandler(TimerServiceListTimersProcedure, svc.ListTimers, opts...))

	return "/" + TimerServiceName + "/", mux
}

// TimerServiceClient calls TimerService over the connect protocol with JSON bodies
type TimerServiceClient struct {
	startTimer  *connect.Client[StartTimerRequest, TimerResponse]
	getTimer    *connect.Client[TimerKeyRequest, TimerResponse]
	cancelTimer *connect.Client[TimerKeyRequest, CancelTimerResponse]
	listTimers  *connect.Client[ListTimersRequest, ListTimersResponse]
}

// NewTimerServiceClient creates a client for the service hosted at baseURL
func NewTimerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *TimerServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &TimerServiceClient{
		startTimer:  connect.NewClient[StartTimerRequest, TimerResponse](httpClient, baseURL+TimerServiceStartTimerProcedure, opts...),
		getTimer:    connect.NewClient[TimerKeyRequest, TimerResponse](httpClient, baseURL+TimerServiceGetTimerProcedure, opts...),
		cancelTimer: connect.NewClient[TimerKeyRequest, CancelTimerResponse](httpClient, baseURL+TimerServiceCancelTimerProcedure, opts...),
		listTimers:  connect.NewClient[ListTimersRequest, ListTimersResponse](httpClient, baseURL+TimerServiceListTimersProcedure, opts...),
	}
}

func (c *TimerServiceClient) StartTimer(ctx context.Context, req *StartTimerRequest) (*TimerResponse, error) {
	res, err := c.startTimer.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *TimerServiceClient) GetTimer(ctx context.Context, req *TimerKeyRequest) (*TimerResponse, error) {
	res, err := c.getTimer.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *TimerServiceClient) CancelTimer(ctx context.Context, req *TimerKeyRequest) error {
	_, err := c.cancelTimer.CallUnary(ctx, connect.NewRequest(req))
	return err
}

func (c *TimerServiceClient) ListTimers(ctx context.Context, req *ListTimersRequest) (*ListTimersResponse, error) {
	res, err := c.listTimers.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
