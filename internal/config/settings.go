package config

import "strings"

// DefaultPrefix префикс редиректов по умолчанию
const DefaultPrefix = "go"

// DefaultWorkerName имя скрипта воркера у провайдера по умолчанию
const DefaultWorkerName = "edgelink-worker"

// Settings неизменяемый набор настроек, разрешаемый один раз на операцию
type Settings struct {
	Host       string
	Prefix     string
	WorkerName string
}

// RoutePattern шаблон маршрута воркера для текущего префикса
func (s Settings) RoutePattern() string {
	return s.RoutePatternFor(s.Prefix)
}

// RoutePatternFor шаблон маршрута воркера для произвольного префикса
func (s Settings) RoutePatternFor(prefix string) string {
	return s.Host + "/" + strings.Trim(prefix, "/") + "/*"
}

// LockKey ключ блокировки операций развёртывания для сайта
func (s Settings) LockKey() string {
	return "edgelink:lock:" + strings.ToLower(s.Host)
}
