// Package orchestrator управляет выполнением builds.
//
// Orchestrator отвечает за:
//   - Получение новых builds из очереди RabbitMQ
//   - Парсинг pipeline spec и построение DAG
//   - Создание tasks для шагов без зависимостей
//   - Отслеживание завершения tasks
//   - Запуск следующих шагов когда зависимости удовлетворены
//   - Запуск on_failure шага при падении build
//   - Финализацию build (SUCCEEDED/FAILED)
//
// Orchestrator — это "мозг" системы, который координирует выполнение.
package orchestrator
