package xml

import "github.com/rezonia/nfse-renderer/internal/model"

// ABRASFAdapter reads the national ABRASF layout
// (<CompNfse><Nfse><InfNfse>), used by most municipalities outside São Paulo.
type ABRASFAdapter struct{}

// NewABRASFAdapter creates a new ABRASF adapter
func NewABRASFAdapter() *ABRASFAdapter {
	return &ABRASFAdapter{}
}

func (a *ABRASFAdapter) Key() string { return "CompNfse" }

func (a *ABRASFAdapter) Schema() model.Schema { return model.SchemaABRASF }

func (a *ABRASFAdapter) Locate(root *Node) Value {
	return root.Search(a.Key())
}

func (a *ABRASFAdapter) Map(n *Node) model.Record {
	inf := n.Child("Nfse", "InfNfse")
	if inf == nil {
		inf = n
	}
	// v2 layouts nest the RPS and service under DeclaracaoPrestacaoServico
	decl := inf.Child("DeclaracaoPrestacaoServico", "InfDeclaracaoPrestacaoServico")
	if decl == nil {
		decl = inf
	}

	rps := decl.Child("Rps", "IdentificacaoRps")
	if rps == nil {
		rps = decl.Child("IdentificacaoRps")
	}
	svc := decl.Child("Servico")
	val := svc.Child("Valores")

	prov := inf.Child("PrestadorServico")
	provider := abrasfParty(prov, prov.Child("IdentificacaoPrestador"))
	if provider.TaxID == "" {
		provider.TaxID = firstText(
			prov.Text("IdentificacaoPrestador", "CpfCnpj", "Cnpj"),
			prov.Text("IdentificacaoPrestador", "CpfCnpj", "Cpf"),
		)
	}

	cust := decl.Child("TomadorServico")
	if cust == nil {
		cust = decl.Child("Tomador")
	}
	customer := abrasfParty(cust, cust.Child("IdentificacaoTomador"))
	if customer.TaxID == "" {
		customer.TaxID = firstText(
			cust.Text("IdentificacaoTomador", "CpfCnpj", "Cnpj"),
			cust.Text("IdentificacaoTomador", "CpfCnpj", "Cpf"),
		)
	}

	rec := model.Record{
		Schema:           model.SchemaABRASF,
		Number:           inf.Text("Numero"),
		VerificationCode: inf.Text("CodigoVerificacao"),
		RegistrationID:   provider.MunicipalRegistration,
		IssuedAt:         inf.Text("DataEmissao"),
		RPS: model.RPS{
			Number:   rps.Text("Numero"),
			Series:   rps.Text("Serie"),
			Type:     rps.Text("Tipo"),
			IssuedAt: firstText(inf.Text("DataEmissaoRps"), decl.Text("Rps", "DataEmissao")),
		},
		Status:       decl.Text("Status"),
		SimpleOption: decl.Text("OptanteSimplesNacional"),
		Provider:     provider,
		Customer:     customer,
		Service: model.Service{
			Description:      svc.Text("Discriminacao"),
			Code:             firstText(svc.Text("ItemListaServico"), svc.Text("CodigoTributacaoMunicipio")),
			MunicipalityCode: svc.Text("CodigoMunicipio"),
		},
		Amounts: model.Amounts{
			Services:    val.Text("ValorServicos"),
			Deductions:  val.Text("ValorDeducoes"),
			TaxBase:     firstText(val.Text("BaseCalculo"), inf.Text("ValoresNfse", "BaseCalculo")),
			Rate:        firstText(val.Text("Aliquota"), inf.Text("ValoresNfse", "Aliquota")),
			ISS:         firstText(val.Text("ValorIss"), inf.Text("ValoresNfse", "ValorIss")),
			ISSWithheld: firstText(val.Text("IssRetido"), svc.Text("IssRetido")),
			Net:         firstText(val.Text("ValorLiquidoNfse"), inf.Text("ValoresNfse", "ValorLiquidoNfse")),
			INSS:        val.Text("ValorInss"),
			IRRF:        val.Text("ValorIr"),
			CSLL:        val.Text("ValorCsll"),
			COFINS:      val.Text("ValorCofins"),
			PIS:         val.Text("ValorPis"),
		},
		MunicipalityCode: firstText(
			inf.Text("OrgaoGerador", "CodigoMunicipio"),
			provider.Address.MunicipalityCode,
		),
	}
	if n.Child("NfseCancelamento") != nil {
		rec.Status = model.StatusCancelled
	}
	return rec
}

func abrasfParty(n, ident *Node) model.Party {
	addr := n.Child("Endereco")
	return model.Party{
		Name:                  n.Text("RazaoSocial"),
		TaxID:                 firstText(ident.Text("Cnpj"), ident.Text("Cpf")),
		MunicipalRegistration: ident.Text("InscricaoMunicipal"),
		Email:                 n.Text("Contato", "Email"),
		Address: model.Address{
			Street:           addr.Text("Endereco"),
			Number:           addr.Text("Numero"),
			Complement:       addr.Text("Complemento"),
			District:         addr.Text("Bairro"),
			MunicipalityCode: addr.Text("CodigoMunicipio"),
			State:            addr.Text("Uf"),
			PostalCode:       addr.Text("Cep"),
		},
	}
}

func firstText(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
