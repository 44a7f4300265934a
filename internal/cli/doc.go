// Package cli реализует инструмент командной строки pybalance-ci.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с pybalance-ci API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления pipelines, builds и schedules.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для pybalance-ci API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	pipelines, err := client.ListPipelines()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: pbci build list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - pipeline: list, create, show, update, delete, versions, publish
//   - build:    list, start, show, cancel, tasks, artifacts
//   - schedule: list, create, show, update, delete, enable, disable
//
// pipeline publish принимает YAML-файл (-f pipeline.yaml) и публикует
// его как новую версию. build start для ветки без маппинга на тег
// завершается с кодом 1 — это ошибка конфигурации, не пропуск.
//
// Каждая группа создаётся через фабричную функцию (NewPipelineCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
