// Package logger envuelve zap para el servicio: un logger global que main
// inicializa con Init, loggers por request guardados en el contexto y
// constructores de campos con nombres fijos.
//
// Uso típico en un service:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Authenticate"))
//	log.Info("account locked", logger.Username(username), logger.Count(n))
//
// Los campos password, secret, client_secret y code nunca se escriben; los
// tokens se recortan a sus primeros caracteres.
package logger
