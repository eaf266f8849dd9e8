// Package rabbitmq is the broker seam between the notifier actor and the
// push-notification delivery workers. The notifier hands it JSON bodies;
// everything broker-shaped stays behind the Publisher interface.
package rabbitmq

import "github.com/streadway/amqp"

// Publisher is the narrow contract the notifier needs from the broker.
type Publisher interface {
	Publish(exchange string, body []byte) error
}

// AMQPPublisher publishes to durable fanout exchanges over a single
// connection. It is driven by one actor goroutine and is not safe for
// concurrent use.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
}

// NewAMQPPublisher connects to the broker and opens the publishing channel.
func NewAMQPPublisher(amqpURL string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{
		conn:     conn,
		channel:  ch,
		declared: make(map[string]bool),
	}, nil
}

// Publish sends body to the named fanout exchange, declaring the exchange
// on first use.
func (p *AMQPPublisher) Publish(exchange string, body []byte) error {
	if !p.declared[exchange] {
		err := p.channel.ExchangeDeclare(
			exchange,
			"fanout",
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return err
		}
		p.declared[exchange] = true
	}

	return p.channel.Publish(
		exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Close closes the channel and the underlying connection.
func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
