// Package bridge carries access-layer operations to the remote clients
// that own the inventories, crafters and redstone outputs of a factory.
//
// Every operation is a JSON request envelope answered by a response
// envelope with the same id:
//
//	{"id":"…","client":"base","op":"transfer","args":{…}}
//	{"id":"…","ok":true,"result":12}
//
// Remote implements access.Remote and access.Printer on top of a
// Transport. Two transports exist:
//
//   - WSServer: clients dial GET /ws/client with a JWT whose subject is
//     the client name. A request for a client that is not connected waits
//     for it until the request times out.
//   - MQTTTransport: requests are published on factoryd/request/{client};
//     replies arrive on factoryd/response/{client}.
//
// Transport failures surface as *access.Error wrapping access.ErrTimeout,
// access.ErrNotConnected or access.ErrRejected, so the factory treats them
// as the transient failures they are.
package bridge
