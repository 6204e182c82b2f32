package xml

import "github.com/rezonia/nfse-renderer/internal/model"

// SPAdapter reads the São Paulo NFS-e layout (<NFe> elements)
type SPAdapter struct{}

// NewSPAdapter creates a new São Paulo adapter
func NewSPAdapter() *SPAdapter {
	return &SPAdapter{}
}

func (a *SPAdapter) Key() string { return "NFe" }

func (a *SPAdapter) Schema() model.Schema { return model.SchemaSP }

func (a *SPAdapter) Locate(root *Node) Value {
	return root.Search(a.Key())
}

func (a *SPAdapter) Map(n *Node) model.Record {
	rec := model.Record{
		Schema:           model.SchemaSP,
		Number:           n.Text("ChaveNFe", "NumeroNFe"),
		VerificationCode: n.Text("ChaveNFe", "CodigoVerificacao"),
		RegistrationID:   n.Text("ChaveNFe", "InscricaoPrestador"),
		IssuedAt:         n.Text("DataEmissaoNFe"),
		BatchNumber:      n.Text("NumeroLote"),
		RPS: model.RPS{
			Number:         n.Text("ChaveRPS", "NumeroRPS"),
			Series:         n.Text("ChaveRPS", "SerieRPS"),
			Type:           n.Text("TipoRPS"),
			IssuedAt:       n.Text("DataEmissaoRPS"),
			RegistrationID: n.Text("ChaveRPS", "InscricaoPrestador"),
		},
		Status:       n.Text("StatusNFe"),
		Taxation:     n.Text("TributacaoNFe"),
		SimpleOption: n.Text("OpcaoSimples"),
		Provider: spParty(n, "CPFCNPJPrestador", "RazaoSocialPrestador",
			"EnderecoPrestador", "EmailPrestador"),
		Customer: spParty(n, "CPFCNPJTomador", "RazaoSocialTomador",
			"EnderecoTomador", "EmailTomador"),
		Service: model.Service{
			Description:      n.Text("Discriminacao"),
			Code:             n.Text("CodigoServico"),
			MunicipalityCode: n.Text("MunicipioPrestacao"),
			WorkRegistration: n.Text("NumeroInscricaoObra"),
		},
		Amounts: model.Amounts{
			Services:      n.Text("ValorServicos"),
			Deductions:    n.Text("ValorDeducoes"),
			TaxBase:       n.Text("BaseCalculo"),
			Rate:          n.Text("AliquotaServicos"),
			ISS:           n.Text("ValorISS"),
			ISSWithheld:   n.Text("ISSRetido"),
			Credit:        n.Text("ValorCredito"),
			TotalReceived: n.Text("ValorTotalRecebido"),
			INSS:          n.Text("ValorINSS"),
			IRRF:          n.Text("ValorIRRF"),
			CSLL:          n.Text("ValorCSLL"),
			COFINS:        n.Text("ValorCOFINS"),
			PIS:           n.Text("ValorPIS"),
			ApproxTaxes:   n.Text("ValorAproximadoTributos"),
		},
		Signature: n.Text("Assinatura"),
	}
	rec.Provider.MunicipalRegistration = rec.RegistrationID
	if rec.Provider.MunicipalRegistration == "" {
		rec.Provider.MunicipalRegistration = rec.RPS.RegistrationID
	}

	rec.MunicipalityCode = rec.Provider.Address.MunicipalityCode
	if rec.MunicipalityCode == "" {
		rec.MunicipalityCode = rec.Service.MunicipalityCode
	}
	return rec
}

func spParty(n *Node, idKey, nameKey, addrKey, emailKey string) model.Party {
	taxID := n.Text(idKey, "CNPJ")
	if taxID == "" {
		taxID = n.Text(idKey, "CPF")
	}
	addr := n.Child(addrKey)
	return model.Party{
		Name:  n.Text(nameKey),
		TaxID: taxID,
		Email: n.Text(emailKey),
		Address: model.Address{
			StreetType:       addr.Text("TipoLogradouro"),
			Street:           addr.Text("Logradouro"),
			Number:           addr.Text("NumeroEndereco"),
			Complement:       addr.Text("ComplementoEndereco"),
			District:         addr.Text("Bairro"),
			MunicipalityCode: addr.Text("Cidade"),
			State:            addr.Text("UF"),
			PostalCode:       addr.Text("CEP"),
		},
	}
}
