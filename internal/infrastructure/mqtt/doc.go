// Package mqtt provides the MQTT broker connection used by factoryd when
// remote clients are reached through a broker instead of dialling in.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS validation and a payload ceiling
//   - Subscriptions that survive reconnects
//   - A retained status topic with a Last Will for crash detection
//
// # Topic layout
//
//	factoryd/request/{client}   requests from factoryd to one remote client
//	factoryd/response/{client}  that client's replies
//	factoryd/system/status      retained online/offline status of factoryd
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllResponses(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(mqtt.Topics{}.ClientOf(topic), payload)
//	    })
//
// TLS should be enabled whenever the broker is not on the local host;
// request payloads move inventory.
package mqtt
