package service

import (
	"go.uber.org/zap"

	"expense-bff/internal/audit"
	"expense-bff/internal/config"
	"expense-bff/internal/encryption"
	"expense-bff/internal/hashing"
	"expense-bff/internal/oauthstate"
	"expense-bff/internal/provider"
	"expense-bff/internal/provider/google"
	"expense-bff/internal/provider/salesforce"
	"expense-bff/internal/repository"
)

// Deps carries everything the service layer is built from.
type Deps struct {
	Config      *config.Config
	Profiles    repository.ProfileStore
	Connections repository.ConnectionStore
	Challenges  repository.ChallengeStore
	Hasher      *hashing.Hasher
	Encryption  *encryption.EncryptionManager
	Mailer      Mailer
	Audit       *audit.Publisher
	StateCodec  *oauthstate.Codec

	Google           *google.Client
	Salesforce       *salesforce.Client
	GoogleRunner     *provider.Runner
	SalesforceRunner *provider.Runner

	Logger *zap.Logger
}

// ServiceFactory wires the services once at startup.
type ServiceFactory struct {
	passcodes   *PasscodeService
	users       *UserService
	connections *ConnectionService
	links       *LinkService
	calendar    *CalendarService
	crm         *CRMService
	kpi         *KPIService
}

func NewServiceFactory(deps Deps) *ServiceFactory {
	connections := NewConnectionService(deps.Connections, deps.Encryption, deps.Audit, deps.Logger)

	return &ServiceFactory{
		passcodes: NewPasscodeService(
			deps.Challenges, deps.Hasher, deps.Mailer, deps.Audit,
			deps.Config.PasscodeTTL, deps.Logger),
		users:       NewUserService(deps.Profiles, deps.Audit, deps.Logger),
		connections: connections,
		links: NewLinkService(
			deps.StateCodec, deps.Google, deps.Salesforce, connections,
			deps.Audit, deps.Logger),
		calendar: NewCalendarService(connections, deps.Google, deps.GoogleRunner, deps.Logger),
		crm: NewCRMService(
			connections, deps.Salesforce, deps.SalesforceRunner,
			!deps.Config.HasPersistentStore(), deps.Logger),
		kpi: NewKPIService(
			deps.Profiles, connections, deps.Google, deps.GoogleRunner, deps.Audit,
			deps.Config.KPI.SheetID, deps.Config.KPI.SheetTab, deps.Logger),
	}
}

func (sf *ServiceFactory) PasscodeService() *PasscodeService     { return sf.passcodes }
func (sf *ServiceFactory) UserService() *UserService             { return sf.users }
func (sf *ServiceFactory) ConnectionService() *ConnectionService { return sf.connections }
func (sf *ServiceFactory) LinkService() *LinkService             { return sf.links }
func (sf *ServiceFactory) CalendarService() *CalendarService     { return sf.calendar }
func (sf *ServiceFactory) CRMService() *CRMService               { return sf.crm }
func (sf *ServiceFactory) KPIService() *KPIService               { return sf.kpi }
