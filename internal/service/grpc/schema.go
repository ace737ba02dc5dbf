package grpcsvc

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// SchemaFile: путь proto-файла, под которым схема сервиса видна через reflection.
const SchemaFile = "storefront/v1/checkout.proto"

const schemaPackage = "storefront.v1"

type fieldSpec struct {
	name     string
	json     string
	kind     descriptorpb.FieldDescriptorProto_Type
	message  string
	repeated bool
}

func scalar(name, json string, kind descriptorpb.FieldDescriptorProto_Type) fieldSpec {
	return fieldSpec{name: name, json: json, kind: kind}
}

func text(name, json string) fieldSpec {
	return scalar(name, json, descriptorpb.FieldDescriptorProto_TYPE_STRING)
}

func nested(name, json, message string) fieldSpec {
	return fieldSpec{name: name, json: json, kind: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, message: message}
}

func list(name, json, message string) fieldSpec {
	f := nested(name, json, message)
	f.repeated = true
	return f
}

// Денежные суммы и время идут строками, как в JSON-представлении.
// Счётчики int32: protojson пишет int64 строкой, а Go-структуры ждут число.
var schemaMessages = []struct {
	name   string
	fields []fieldSpec
}{
	{"Address", []fieldSpec{
		text("name", "name"), text("street", "street"), text("city", "city"),
		text("state", "state"), text("postal_code", "postalCode"), text("phone", "phone"),
	}},
	{"CartLine", []fieldSpec{
		text("product_id", "productId"), text("vendor_id", "vendorId"),
		scalar("quantity", "quantity", descriptorpb.FieldDescriptorProto_TYPE_INT32),
		text("price", "price"),
	}},
	{"PlaceOrderRequest", []fieldSpec{
		text("buyer_id", "buyerId"), text("customer_name", "customerName"),
		list("cart_lines", "cartLines", "CartLine"), text("total_amount", "totalAmount"),
		nested("address", "address", "Address"),
	}},
	{"PlaceOrderResponse", []fieldSpec{
		scalar("success", "success", descriptorpb.FieldDescriptorProto_TYPE_BOOL), text("order_id", "orderId"),
	}},
	{"OrderItem", []fieldSpec{
		text("id", "id"), text("product_id", "productId"), text("vendor_id", "vendorId"),
		scalar("quantity", "quantity", descriptorpb.FieldDescriptorProto_TYPE_INT32),
		text("price", "price"), text("status", "status"),
	}},
	{"Order", []fieldSpec{
		text("id", "id"), text("customer_id", "customerId"), text("customer_name", "customerName"),
		text("total_amount", "totalAmount"), text("status", "status"), nested("address", "address", "Address"),
		list("items", "items", "OrderItem"),
		scalar("version", "version", descriptorpb.FieldDescriptorProto_TYPE_INT32),
		text("created_at", "createdAt"), text("updated_at", "updatedAt"),
	}},
	{"TimelineEvent", []fieldSpec{
		text("type", "type"), text("actor", "actor"), text("status", "status"),
		text("reason", "reason"), text("occurred", "occurred"),
	}},
	{"GetOrderRequest", []fieldSpec{text("order_id", "orderId")}},
	{"GetOrderResponse", []fieldSpec{
		nested("order", "order", "Order"), list("timeline", "timeline", "TimelineEvent"),
	}},
	{"ListOrdersRequest", []fieldSpec{
		text("customer_id", "customerId"), text("vendor_id", "vendorId"),
		scalar("limit", "limit", descriptorpb.FieldDescriptorProto_TYPE_INT32),
	}},
	{"ListOrdersResponse", []fieldSpec{list("orders", "orders", "Order")}},
	{"CancelOrderRequest", []fieldSpec{text("order_id", "orderId"), text("customer_id", "customerId")}},
	{"CancelOrderResponse", []fieldSpec{text("order_id", "orderId"), text("status", "status")}},
	{"GetProductRequest", []fieldSpec{text("product_id", "productId")}},
	{"Product", []fieldSpec{
		text("id", "id"), text("vendor_id", "vendorId"), text("name", "name"), text("price", "price"),
		scalar("quantity", "quantity", descriptorpb.FieldDescriptorProto_TYPE_INT32),
		scalar("version", "version", descriptorpb.FieldDescriptorProto_TYPE_INT32),
		text("updated_at", "updatedAt"),
	}},
	{"GetProductResponse", []fieldSpec{nested("product", "product", "Product")}},
}

var schemaMethods = []struct {
	name, input, output string
}{
	{"PlaceOrder", "PlaceOrderRequest", "PlaceOrderResponse"},
	{"GetOrder", "GetOrderRequest", "GetOrderResponse"},
	{"ListOrders", "ListOrdersRequest", "ListOrdersResponse"},
	{"CancelOrder", "CancelOrderRequest", "CancelOrderResponse"},
	{"GetProduct", "GetProductRequest", "GetProductResponse"},
}

// messageNames связывает Go-структуры транспорта с сообщениями схемы.
var messageNames = map[reflect.Type]protoreflect.Name{
	reflect.TypeOf(PlaceOrderRequest{}):   "PlaceOrderRequest",
	reflect.TypeOf(PlaceOrderResponse{}):  "PlaceOrderResponse",
	reflect.TypeOf(GetOrderRequest{}):     "GetOrderRequest",
	reflect.TypeOf(GetOrderResponse{}):    "GetOrderResponse",
	reflect.TypeOf(ListOrdersRequest{}):   "ListOrdersRequest",
	reflect.TypeOf(ListOrdersResponse{}):  "ListOrdersResponse",
	reflect.TypeOf(CancelOrderRequest{}):  "CancelOrderRequest",
	reflect.TypeOf(CancelOrderResponse{}): "CancelOrderResponse",
	reflect.TypeOf(GetProductRequest{}):   "GetProductRequest",
	reflect.TypeOf(GetProductResponse{}):  "GetProductResponse",
}

// schema: дескриптор storefront/v1/checkout.proto, собранный без protoc.
var schema protoreflect.FileDescriptor

func schemaProto() *descriptorpb.FileDescriptorProto {
	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(SchemaFile),
		Package: proto.String(schemaPackage),
		Syntax:  proto.String("proto3"),
	}
	for _, msg := range schemaMessages {
		desc := &descriptorpb.DescriptorProto{Name: proto.String(msg.name)}
		for i, f := range msg.fields {
			label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
			if f.repeated {
				label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
			}
			field := &descriptorpb.FieldDescriptorProto{
				Name:     proto.String(f.name),
				JsonName: proto.String(f.json),
				Number:   proto.Int32(int32(i + 1)),
				Label:    label.Enum(),
				Type:     f.kind.Enum(),
			}
			if f.message != "" {
				field.TypeName = proto.String("." + schemaPackage + "." + f.message)
			}
			desc.Field = append(desc.Field, field)
		}
		file.MessageType = append(file.MessageType, desc)
	}

	service := &descriptorpb.ServiceDescriptorProto{Name: proto.String("CheckoutService")}
	for _, m := range schemaMethods {
		service.Method = append(service.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.name),
			InputType:  proto.String("." + schemaPackage + "." + m.input),
			OutputType: proto.String("." + schemaPackage + "." + m.output),
		})
	}
	file.Service = []*descriptorpb.ServiceDescriptorProto{service}
	return file
}

func buildSchema() (protoreflect.FileDescriptor, error) {
	fd, err := protodesc.NewFile(schemaProto(), protoregistry.GlobalFiles)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", SchemaFile, err)
	}
	return fd, nil
}

// messageDescriptor находит сообщение схемы для Go-значения транспорта.
func messageDescriptor(v any) (protoreflect.MessageDescriptor, bool) {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name, ok := messageNames[t]
	if !ok {
		return nil, false
	}
	md := schema.Messages().ByName(name)
	return md, md != nil
}

func init() {
	fd, err := buildSchema()
	if err != nil {
		panic(err)
	}
	schema = fd
	// Reflection ищет сервисы в глобальном реестре.
	if _, err := protoregistry.GlobalFiles.FindFileByPath(SchemaFile); err != nil {
		if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
			panic(err)
		}
	}
}
