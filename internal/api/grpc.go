package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/victornm/quizforge/internal/errors"
)

const quizServiceName = "quizforge.v1.QuizService"

// QuizServiceServer is the gRPC face of the API. Every message is a google.protobuf.Struct that
// carries the same JSON document as the matching HTTP endpoint.
type QuizServiceServer interface {
	GenerateQuiz(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetQuiz(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CreateSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SubmitAnswers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetResult(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetLeaderboard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var quizServiceDesc = grpc.ServiceDesc{
	ServiceName: quizServiceName,
	HandlerType: (*QuizServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GenerateQuiz", QuizServiceServer.GenerateQuiz),
		unaryMethod("GetQuiz", QuizServiceServer.GetQuiz),
		unaryMethod("CreateSession", QuizServiceServer.CreateSession),
		unaryMethod("GetSession", QuizServiceServer.GetSession),
		unaryMethod("SubmitAnswers", QuizServiceServer.SubmitAnswers),
		unaryMethod("GetResult", QuizServiceServer.GetResult),
		unaryMethod("GetLeaderboard", QuizServiceServer.GetLeaderboard),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quizforge/v1/quiz.proto",
}

type structMethod func(srv QuizServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call structMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(QuizServiceServer), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + quizServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

type grpcServer struct {
	api *API
}

func (s *grpcServer) GenerateQuiz(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handleStruct(ctx, in, func(ctx context.Context, req GenerateQuizRequest) (any, error) {
		req.UserID = grpcUserID(ctx, req.UserID)
		return s.api.generateQuiz(ctx, req)
	})
}

func (s *grpcServer) GetQuiz(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handleStruct(ctx, in, func(ctx context.Context, req GetQuizRequest) (any, error) {
		return s.api.getQuiz(ctx, req)
	})
}

func (s *grpcServer) CreateSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handleStruct(ctx, in, func(ctx context.Context, req CreateSessionRequest) (any, error) {
		req.UserID = grpcUserID(ctx, req.UserID)
		return s.api.createSession(ctx, req)
	})
}

func (s *grpcServer) GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handleStruct(ctx, in, func(ctx context.Context, req GetSessionRequest) (any, error) {
		req.UserID = grpcUserID(ctx, req.UserID)
		return s.api.getSession(ctx, req)
	})
}

func (s *grpcServer) SubmitAnswers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handleStruct(ctx, in, func(ctx context.Context, req SubmitAnswersRequest) (any, error) {
		req.UserID = grpcUserID(ctx, req.UserID)
		return s.api.submitAnswers(ctx, req)
	})
}

func (s *grpcServer) GetResult(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handleStruct(ctx, in, func(ctx context.Context, req GetSessionRequest) (any, error) {
		req.UserID = grpcUserID(ctx, req.UserID)
		return s.api.getResult(ctx, req)
	})
}

func (s *grpcServer) GetLeaderboard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handleStruct(ctx, in, func(ctx context.Context, req GetLeaderboardRequest) (any, error) {
		return s.api.getLeaderboard(ctx, req)
	})
}

// handleStruct decodes in as a JSON request, runs fn and encodes its result back into a Struct.
func handleStruct[Req any](ctx context.Context, in *structpb.Struct, fn func(ctx context.Context, req Req) (any, error)) (*structpb.Struct, error) {
	var req Req

	b, err := protojson.Marshal(in)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("malformed request"),
			errors.WithCause(err),
		)
	}

	res, err := fn(ctx, req)
	if err != nil {
		return nil, errors.Convert(err)
	}

	return toStruct(res)
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Internal(err)
	}

	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, errors.Internal(err)
	}

	return out, nil
}

// grpcUserID prefers the x-user-id metadata entry over the identity carried by the request.
func grpcUserID(ctx context.Context, fallback string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return fallback
	}

	if v := md.Get("x-user-id"); len(v) > 0 && v[0] != "" {
		return v[0]
	}
	return fallback
}
