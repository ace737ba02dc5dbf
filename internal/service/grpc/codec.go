package grpcsvc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"
)

// CodecName: content-subtype, под которым зарегистрирован JSON-кодек.
const CodecName = "json"

// ProtoCodecName: content-subtype по умолчанию у gRPC-клиентов.
const ProtoCodecName = "proto"

// jsonCodec переносит сообщения CheckoutService как JSON: сгенерированных protobuf-типов нет.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

// protoCodec отдаёт сообщения CheckoutService в бинарном protobuf по схеме storefront.v1.
// Go-структура проходит через JSON и dynamicpb; настоящие proto.Message (reflection,
// health) кодируются как обычно.
type protoCodec struct{}

var (
	toProto   = protojson.UnmarshalOptions{DiscardUnknown: true}
	fromProto = protojson.MarshalOptions{}
)

func (protoCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	md, ok := messageDescriptor(v)
	if !ok {
		return nil, fmt.Errorf("proto codec: no schema message for %T", v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("proto codec: encode %T: %w", v, err)
	}
	msg := dynamicpb.NewMessage(md)
	if err := toProto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("proto codec: map %T to %s: %w", v, md.FullName(), err)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	md, ok := messageDescriptor(v)
	if !ok {
		return fmt.Errorf("proto codec: no schema message for %T", v)
	}
	msg := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("proto codec: decode %s: %w", md.FullName(), err)
	}
	out, err := fromProto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("proto codec: map %s: %w", md.FullName(), err)
	}
	return json.Unmarshal(out, v)
}

func (protoCodec) Name() string {
	return ProtoCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
	encoding.RegisterCodec(protoCodec{})
}
