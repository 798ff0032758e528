// Package mqtt connects the gateway to its MQTT broker.
//
// It wraps paho.mqtt.golang with bounded connect, publish and subscribe
// calls, a last-will message, and panic recovery around message handlers.
// Connection state transitions are exposed as callbacks so the session
// layer can drive subscriptions and reconnection itself.
//
//	client, err := mqtt.New(cfg.MQTT, mqtt.WithWill(healthTopic, offline))
//	if err != nil {
//	    return err
//	}
//	client.SetOnConnect(session.HandleConnect)
//	client.SetOnConnectionLost(session.HandleConnectionLost)
//	err = client.Connect(ctx)
//
// Credentials are mandatory. TLS (ssl://) is used when broker.tls is set.
package mqtt
