package pubsub

// Reset/String/ProtoMessage satisfy gogo/protobuf's proto.Message so that
// proto.Marshal/proto.Unmarshal dispatch straight to the hand-written
// Marshal/Unmarshal methods in rpc.go (via the Marshaler/Unmarshaler interfaces)
// instead of falling back to reflection.

func (m *RPC) Reset()         { *m = RPC{} }
func (m *RPC) String() string { return "pubsub.RPC" }
func (*RPC) ProtoMessage()    {}

func (m *SubOpts) Reset()         { *m = SubOpts{} }
func (m *SubOpts) String() string { return "pubsub.SubOpts" }
func (*SubOpts) ProtoMessage()    {}

func (m *Message) Reset()         { *m = Message{} }
func (m *Message) String() string { return "pubsub.Message" }
func (*Message) ProtoMessage()    {}

func (m *ControlMessage) Reset()         { *m = ControlMessage{} }
func (m *ControlMessage) String() string { return "pubsub.ControlMessage" }
func (*ControlMessage) ProtoMessage()    {}

func (m *ControlIHave) Reset()         { *m = ControlIHave{} }
func (m *ControlIHave) String() string { return "pubsub.ControlIHave" }
func (*ControlIHave) ProtoMessage()    {}

func (m *ControlIWant) Reset()         { *m = ControlIWant{} }
func (m *ControlIWant) String() string { return "pubsub.ControlIWant" }
func (*ControlIWant) ProtoMessage()    {}

func (m *ControlGraft) Reset()         { *m = ControlGraft{} }
func (m *ControlGraft) String() string { return "pubsub.ControlGraft" }
func (*ControlGraft) ProtoMessage()    {}

func (m *ControlPrune) Reset()         { *m = ControlPrune{} }
func (m *ControlPrune) String() string { return "pubsub.ControlPrune" }
func (*ControlPrune) ProtoMessage()    {}
