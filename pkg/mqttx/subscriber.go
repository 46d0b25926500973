package mqttx

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe attaches handler to topic and waits for the broker to confirm.
func Subscribe(client mqtt.Client, topic string, qos byte, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, qos, handler)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return nil
}

// JSONHandler decodes each message into T and hands it to fn. Malformed
// payloads are logged and dropped; they must never take the handler down.
func JSONHandler[T any](name string, fn func(T)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("%s: bad payload on %s: %v", name, msg.Topic(), err)
			return
		}
		fn(v)
	}
}
