// Package repository define las entidades del dominio y las interfaces de
// acceso a datos. Las implementaciones viven en internal/store; los services
// solo conocen estas interfaces.
package repository
