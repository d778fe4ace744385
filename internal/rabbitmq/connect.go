// Package rabbitmq содержит подключение к брокеру и топологию очереди
// заданий на доставку отчётов: API публикует задание после проверки
// доступа, report-sender потребляет его и отправляет письмо с PDF.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру с повторами: брокер в compose-окружении
// может подниматься дольше сервиса.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"

	var conn *amqp.Connection
	var err error
	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал и объявляет durable-топологию доставки
// отчётов: exchange, очереди и привязки. Повторное объявление той же
// топологии безвредно, поэтому её делают оба бинарника.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(consumerConcurrency, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	if err := ch.ExchangeDeclare(ReportsExchange, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, ReportsExchange, false, nil); err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}
	return ch, nil
}
