// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - build.pending    — новый build ожидает выполнения
//   - task.ready       — задача готова к выполнению
//   - task.completed   — задача завершена
//
// Exchanges:
//   - pbci.builds  — события builds
//   - pbci.tasks   — события tasks
//   - pbci.dlq     — dead letter queue
package mq
