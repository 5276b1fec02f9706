// Package repository define los modelos persistidos y las interfaces de
// almacenamiento del núcleo de autenticación.
//
// Las interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente. Las implementaciones concretas viven en
// internal/store/{memory,pg,redis}.
//
//	┌─────────────────────────────────────────────────────┐
//	│   authn / identity / ledger / usertoken / issuance  │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│  UserRepository, UserTokenRepository,               │
//	│  RetryRepository, ClientRepository                  │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	         ┌──────────────┼──────────────┐
//	         ▼              ▼              ▼
//	┌─────────────┐  ┌─────────────┐  ┌─────────────┐
//	│   memory    │  │     pg      │  │    redis    │
//	└─────────────┘  └─────────────┘  └─────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los usernames se guardan en mayúsculas y los emails en minúsculas
//   - Errores de dominio están en errors.go
package repository
