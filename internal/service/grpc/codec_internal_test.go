package grpcsvc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestSchema_DescribesServiceDesc(t *testing.T) {
	desc, err := protoregistry.GlobalFiles.FindDescriptorByName(ServiceName)
	require.NoError(t, err)
	service, ok := desc.(protoreflect.ServiceDescriptor)
	require.True(t, ok)
	require.Equal(t, SchemaFile, service.ParentFile().Path())
	require.Equal(t, SchemaFile, ServiceDesc.Metadata)

	require.Equal(t, len(ServiceDesc.Methods), service.Methods().Len())
	for _, m := range ServiceDesc.Methods {
		method := service.Methods().ByName(protoreflect.Name(m.MethodName))
		require.NotNil(t, method, m.MethodName)
		require.True(t, hasGoType(method.Input().Name()), "input of %s has no Go type", m.MethodName)
		require.True(t, hasGoType(method.Output().Name()), "output of %s has no Go type", m.MethodName)
	}
}

func TestProtoCodec_WireFormat(t *testing.T) {
	codec := protoCodec{}

	data, err := codec.Marshal(&PlaceOrderResponse{Success: true, OrderID: "o-1"})
	require.NoError(t, err)
	// success = 1 (varint), order_id = 2 (length-delimited).
	require.Equal(t, []byte{0x08, 0x01, 0x12, 0x03, 'o', '-', '1'}, data)

	var resp PlaceOrderResponse
	require.NoError(t, codec.Unmarshal(data, &resp))
	require.Equal(t, PlaceOrderResponse{Success: true, OrderID: "o-1"}, resp)
}

func TestProtoCodec_RequestReadableAsDynamicMessage(t *testing.T) {
	codec := protoCodec{}
	req := &PlaceOrderRequest{
		BuyerID:     "buyer-1",
		CartLines:   []domain.CartLine{{ProductID: "p-1", VendorID: "v-1", Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")}},
		TotalAmount: decimal.RequireFromString("19.98"),
		Address:     &domain.Address{Name: "Jane Doe", PostalCode: "73301"},
	}

	data, err := codec.Marshal(req)
	require.NoError(t, err)

	md, ok := messageDescriptor(req)
	require.True(t, ok)
	msg := dynamicpb.NewMessage(md)
	require.NoError(t, proto.Unmarshal(data, msg))

	fields := md.Fields()
	require.Equal(t, "buyer-1", msg.Get(fields.ByName("buyer_id")).String())
	require.Equal(t, "19.98", msg.Get(fields.ByName("total_amount")).String())
	lines := msg.Get(fields.ByName("cart_lines")).List()
	require.Equal(t, 1, lines.Len())
	line := lines.Get(0).Message()
	require.EqualValues(t, 2, line.Get(line.Descriptor().Fields().ByName("quantity")).Int())
	require.Equal(t, "9.99", line.Get(line.Descriptor().Fields().ByName("price")).String())
	addr := msg.Get(fields.ByName("address")).Message()
	require.Equal(t, "73301", addr.Get(addr.Descriptor().Fields().ByName("postal_code")).String())

	var decoded PlaceOrderRequest
	require.NoError(t, codec.Unmarshal(data, &decoded))
	require.Equal(t, "buyer-1", decoded.BuyerID)
	require.True(t, req.TotalAmount.Equal(decoded.TotalAmount))
	require.Equal(t, *req.Address, *decoded.Address)
}

func TestProtoCodec_PassesThroughProtoMessages(t *testing.T) {
	codec := protoCodec{}
	in := &descriptorpb.FileDescriptorProto{Name: proto.String(SchemaFile)}

	data, err := codec.Marshal(in)
	require.NoError(t, err)

	out := &descriptorpb.FileDescriptorProto{}
	require.NoError(t, codec.Unmarshal(data, out))
	require.Equal(t, SchemaFile, out.GetName())
}

func TestProtoCodec_UnknownType(t *testing.T) {
	codec := protoCodec{}

	_, err := codec.Marshal(&replayError{Code: 1})
	require.ErrorContains(t, err, "no schema message")
	require.ErrorContains(t, codec.Unmarshal([]byte{}, &struct{}{}), "no schema message")
}

func hasGoType(name protoreflect.Name) bool {
	for _, n := range messageNames {
		if n == name {
			return true
		}
	}
	return false
}
